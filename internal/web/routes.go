package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/tripmarket/placelens/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.config, s.service, s.places, s.blobs)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)

		// Catalog administration, only with a writable backend
		if s.admin != nil {
			placesHandler := handlers.NewPlacesHandler(s.config, s.admin, s.blobs)
			productsHandler := handlers.NewProductsHandler(s.config, s.admin, s.blobs)

			r.Get("/places", placesHandler.List)
			r.Post("/places", placesHandler.Create)
			r.Get("/places/{id}", placesHandler.Get)
			r.Post("/places/{id}/image", placesHandler.UploadImage)
			r.Post("/places/{id}/media", placesHandler.UploadMedia)

			r.Post("/products", productsHandler.Create)
			r.Get("/products/{id}", productsHandler.Get)
			r.Post("/products/{id}/image", productsHandler.UploadImage)
			r.Post("/products/{id}/media", productsHandler.UploadMedia)

			r.Delete("/media/{mediaId}", placesHandler.DeleteMedia)
		}
	})
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/storage"
)

// ProductsHandler handles catalog product administration.
type ProductsHandler struct {
	config *config.Config
	store  catalog.Store
	blobs  storage.Store
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(cfg *config.Config, store catalog.Store, blobs storage.Store) *ProductsHandler {
	return &ProductsHandler{
		config: cfg,
		store:  store,
		blobs:  blobs,
	}
}

type createProductRequest struct {
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Active        *bool   `json:"active"`
	RoutePlaceIDs []int64 `json:"route_place_ids"`
}

// Create adds a new product. The route determines which place a recognized
// product photo routes to; a product may be created without one, in which
// case its imagery is excluded from recognition.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	id, err := h.store.CreateProduct(r.Context(), &catalog.Product{
		Name:          req.Name,
		Slug:          req.Slug,
		Active:        active,
		RoutePlaceIDs: req.RoutePlaceIDs,
	})
	if err != nil {
		log.Printf("failed to create product %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// Get returns one product by id.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}

	out := map[string]any{
		"id":              product.ID,
		"name":            product.Name,
		"slug":            product.Slug,
		"active":          product.Active,
		"image_key":       product.ImageKey,
		"route_place_ids": product.RoutePlaceIDs,
	}
	if !product.ImageDHash.IsZero() {
		out["image_dhash"] = product.ImageDHash.Hex()
	}
	respondJSON(w, http.StatusOK, out)
}

// UploadImage replaces a product's primary image, fingerprinting it at
// ingestion time like place imagery.
func (h *ProductsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	// Reuse the place handler's ingestion path; the fingerprint pipeline is
	// identical for both entity kinds.
	ph := PlacesHandler{config: h.config, store: h.store, blobs: h.blobs}
	key, fp, ok := ph.ingestImage(w, r)
	if !ok {
		return
	}

	if err := h.store.SetProductImage(r.Context(), id, key, fp); err != nil {
		log.Printf("failed to set image for product %d: %v", id, err)
		respondError(w, http.StatusNotFound, "product not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"dhash": fp.Hex(),
	})
}

// UploadMedia attaches a secondary image to a product.
func (h *ProductsHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	ph := PlacesHandler{config: h.config, store: h.store, blobs: h.blobs}
	key, fp, ok := ph.ingestImage(w, r)
	if !ok {
		return
	}

	mediaID, err := h.store.AddMedia(r.Context(), &catalog.Media{
		ProductID: id,
		Key:       key,
		DHash:     fp,
	})
	if err != nil {
		log.Printf("failed to add media for product %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to add media")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":    mediaID,
		"key":   key,
		"dhash": fp.Hex(),
	})
}

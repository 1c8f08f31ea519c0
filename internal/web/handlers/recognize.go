package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/dhash"
	"github.com/tripmarket/placelens/internal/recognizer"
	"github.com/tripmarket/placelens/internal/storage"
)

// RecognizeHandler handles photo recognition requests.
type RecognizeHandler struct {
	config  *config.Config
	service *recognizer.Service
	places  catalog.PlaceReader
	blobs   storage.Store
}

// NewRecognizeHandler creates a new recognition handler.
func NewRecognizeHandler(cfg *config.Config, service *recognizer.Service, places catalog.PlaceReader, blobs storage.Store) *RecognizeHandler {
	return &RecognizeHandler{
		config:  cfg,
		service: service,
		places:  places,
		blobs:   blobs,
	}
}

// Recognize accepts a multipart photo upload, finds the closest catalog place
// and answers with a redirect to its page. Decode failures and
// below-confidence results are client errors, never 5xx: a failed match is not
// transient and retrying the same image yields the same result.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	data, header, err := readUploadedFile(r, "photo", h.config.Recognizer.MaxUploadBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "please upload one photo in the 'photo' field")
		return
	}

	// Keep the uploaded photo under a fresh key. Every upload gets its own
	// key, so concurrent requests never contend on the blob store.
	key := storage.NewKey("uploads", header.Filename)
	if err := h.blobs.Put(r.Context(), key, data, header.Header.Get("Content-Type")); err != nil {
		log.Printf("failed to store uploaded photo: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store uploaded photo")
		return
	}

	match, err := h.service.Recognize(r.Context(), data)
	switch {
	case errors.Is(err, dhash.ErrDecode):
		respondError(w, http.StatusBadRequest, "the uploaded file is not a valid image")
		return
	case errors.Is(err, recognizer.ErrNoMatch):
		respondError(w, http.StatusBadRequest, "could not recognize the object, try a different photo")
		return
	case err != nil:
		log.Printf("recognition failed for upload %s: %v", sanitizeForLog(key), err)
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	place, err := h.places.GetPlace(r.Context(), match.PlaceID)
	if err != nil {
		log.Printf("matched place %d cannot be loaded: %v", match.PlaceID, err)
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/places/%s", place.Slug))
	respondJSON(w, http.StatusSeeOther, map[string]any{
		"place_id": place.ID,
		"slug":     place.Slug,
		"name":     place.Name,
		"distance": match.Distance,
	})
}

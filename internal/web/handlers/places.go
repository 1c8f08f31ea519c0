package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/dhash"
	"github.com/tripmarket/placelens/internal/storage"
)

// PlacesHandler handles catalog place administration, including the
// ingestion-time fingerprinting of uploaded imagery.
type PlacesHandler struct {
	config *config.Config
	store  catalog.Store
	blobs  storage.Store
}

// NewPlacesHandler creates a new places handler.
func NewPlacesHandler(cfg *config.Config, store catalog.Store, blobs storage.Store) *PlacesHandler {
	return &PlacesHandler{
		config: cfg,
		store:  store,
		blobs:  blobs,
	}
}

type createPlaceRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// Create adds a new place to the catalog.
func (h *PlacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlaceRequest
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

	id, err := h.store.CreatePlace(r.Context(), &catalog.Place{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Active:      active,
	})
	if err != nil {
		log.Printf("failed to create place %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to create place")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// List returns all catalog places.
func (h *PlacesHandler) List(w http.ResponseWriter, r *http.Request) {
	places, err := h.store.ListPlaces(r.Context())
	if err != nil {
		log.Printf("failed to list places: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list places")
		return
	}

	out := make([]map[string]any, 0, len(places))
	for _, p := range places {
		out = append(out, placeJSON(&p))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one place by id.
func (h *PlacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid place id")
		return
	}

	place, err := h.store.GetPlace(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "place not found")
		return
	}
	respondJSON(w, http.StatusOK, placeJSON(place))
}

// UploadImage replaces a place's primary image. The stored bytes are
// fingerprinted immediately and the fingerprint is persisted with the record,
// replacing any previous one.
func (h *PlacesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid place id")
		return
	}

	key, fp, ok := h.ingestImage(w, r)
	if !ok {
		return
	}

	if err := h.store.SetPlaceImage(r.Context(), id, key, fp); err != nil {
		log.Printf("failed to set image for place %d: %v", id, err)
		respondError(w, http.StatusNotFound, "place not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"dhash": fp.Hex(),
	})
}

// UploadMedia attaches a secondary image to a place.
func (h *PlacesHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid place id")
		return
	}

	key, fp, ok := h.ingestImage(w, r)
	if !ok {
		return
	}

	mediaID, err := h.store.AddMedia(r.Context(), &catalog.Media{
		PlaceID: id,
		Key:     key,
		DHash:   fp,
	})
	if err != nil {
		log.Printf("failed to add media for place %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to add media")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":    mediaID,
		"key":   key,
		"dhash": fp.Hex(),
	})
}

// DeleteMedia removes a secondary image record together with its fingerprint,
// so deleted imagery can never be matched again.
func (h *PlacesHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	mediaID, err := pathID(r, "mediaId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	if err := h.store.DeleteMedia(r.Context(), mediaID); err != nil {
		respondError(w, http.StatusNotFound, "media not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ingestImage validates and stores an uploaded image, returning its blob key
// and fingerprint. Responds with an error and returns ok=false on failure.
func (h *PlacesHandler) ingestImage(w http.ResponseWriter, r *http.Request) (string, dhash.Fingerprint, bool) {
	data, header, err := readUploadedFile(r, "image", h.config.Recognizer.MaxUploadBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "please upload one image in the 'image' field")
		return "", dhash.Fingerprint{}, false
	}

	// Hash before storing so undecodable files never reach the blob store.
	fp, err := dhash.Compute(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "the uploaded file is not a valid image")
		return "", dhash.Fingerprint{}, false
	}

	key := storage.NewKey("catalog", header.Filename)
	if err := h.blobs.Put(r.Context(), key, data, header.Header.Get("Content-Type")); err != nil {
		log.Printf("failed to store catalog image: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return "", dhash.Fingerprint{}, false
	}

	return key, fp, true
}

func placeJSON(p *catalog.Place) map[string]any {
	out := map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
		"active":      p.Active,
		"image_key":   p.ImageKey,
	}
	if !p.ImageDHash.IsZero() {
		out["image_dhash"] = p.ImageDHash.Hex()
	}
	return out
}

// pathID parses a chi URL parameter as an int64 id.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

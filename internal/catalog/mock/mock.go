// Package mock provides an in-memory catalog for tests and for running the
// service without a database.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// Catalog is an in-memory implementation of catalog.Store.
type Catalog struct {
	mu       sync.RWMutex
	places   map[int64]*catalog.Place
	products map[int64]*catalog.Product
	media    map[int64]*catalog.Media
	nextID   int64

	// Error injection
	ListCandidatesError error
	GetPlaceError       error
}

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		places:   make(map[int64]*catalog.Place),
		products: make(map[int64]*catalog.Product),
		media:    make(map[int64]*catalog.Media),
		nextID:   1,
	}
}

func (c *Catalog) nextIDLocked() int64 {
	id := c.nextID
	c.nextID++
	return id
}

// ListCandidates derives the match candidate collection: active places first
// (primary image, then media), then active products attributed to their first
// route place. Iteration is ordered by id so ties in a similarity query are
// reproducible.
func (c *Catalog) ListCandidates(ctx context.Context) ([]catalog.Candidate, error) {
	if c.ListCandidatesError != nil {
		return nil, c.ListCandidatesError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var candidates []catalog.Candidate

	for _, id := range sortedKeys(c.places) {
		place := c.places[id]
		if !place.Active {
			continue
		}
		if !place.ImageDHash.IsZero() {
			candidates = append(candidates, catalog.Candidate{PlaceID: place.ID, Fingerprint: place.ImageDHash})
		}
		for _, mid := range sortedKeys(c.media) {
			m := c.media[mid]
			if m.PlaceID == place.ID && !m.DHash.IsZero() {
				candidates = append(candidates, catalog.Candidate{PlaceID: place.ID, Fingerprint: m.DHash})
			}
		}
	}

	for _, id := range sortedKeys(c.products) {
		product := c.products[id]
		if !product.Active || len(product.RoutePlaceIDs) == 0 {
			continue
		}
		placeID := product.RoutePlaceIDs[0]
		if !product.ImageDHash.IsZero() {
			candidates = append(candidates, catalog.Candidate{PlaceID: placeID, Fingerprint: product.ImageDHash})
		}
		for _, mid := range sortedKeys(c.media) {
			m := c.media[mid]
			if m.ProductID == product.ID && !m.DHash.IsZero() {
				candidates = append(candidates, catalog.Candidate{PlaceID: placeID, Fingerprint: m.DHash})
			}
		}
	}

	return candidates, nil
}

// GetPlace retrieves a place by id.
func (c *Catalog) GetPlace(ctx context.Context, id int64) (*catalog.Place, error) {
	if c.GetPlaceError != nil {
		return nil, c.GetPlaceError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	place, ok := c.places[id]
	if !ok {
		return nil, fmt.Errorf("place %d not found", id)
	}
	cp := *place
	return &cp, nil
}

// CreatePlace stores a new place and returns its id.
func (c *Catalog) CreatePlace(ctx context.Context, place *catalog.Place) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *place
	cp.ID = c.nextIDLocked()
	if cp.Slug == "" {
		cp.Slug = catalog.Slugify(cp.Name)
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	c.places[cp.ID] = &cp
	return cp.ID, nil
}

// ListPlaces returns all places ordered by id.
func (c *Catalog) ListPlaces(ctx context.Context) ([]catalog.Place, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var places []catalog.Place
	for _, id := range sortedKeys(c.places) {
		places = append(places, *c.places[id])
	}
	return places, nil
}

// SetPlaceImage replaces a place's primary image and its fingerprint.
func (c *Catalog) SetPlaceImage(ctx context.Context, placeID int64, key string, fp dhash.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	place, ok := c.places[placeID]
	if !ok {
		return fmt.Errorf("place %d not found", placeID)
	}
	place.ImageKey = key
	place.ImageDHash = fp
	place.UpdatedAt = time.Now()
	return nil
}

// CreateProduct stores a new product and returns its id.
func (c *Catalog) CreateProduct(ctx context.Context, product *catalog.Product) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *product
	cp.ID = c.nextIDLocked()
	if cp.Slug == "" {
		cp.Slug = catalog.Slugify(cp.Name)
	}
	cp.RoutePlaceIDs = append([]int64(nil), product.RoutePlaceIDs...)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	c.products[cp.ID] = &cp
	return cp.ID, nil
}

// GetProduct retrieves a product by id.
func (c *Catalog) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	cp := *product
	cp.RoutePlaceIDs = append([]int64(nil), product.RoutePlaceIDs...)
	return &cp, nil
}

// ListProducts returns all products ordered by id.
func (c *Catalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var products []catalog.Product
	for _, id := range sortedKeys(c.products) {
		products = append(products, *c.products[id])
	}
	return products, nil
}

// SetProductImage replaces a product's primary image and its fingerprint.
func (c *Catalog) SetProductImage(ctx context.Context, productID int64, key string, fp dhash.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	product, ok := c.products[productID]
	if !ok {
		return fmt.Errorf("product %d not found", productID)
	}
	product.ImageKey = key
	product.ImageDHash = fp
	product.UpdatedAt = time.Now()
	return nil
}

// AddMedia attaches a secondary image to a place or product.
func (c *Catalog) AddMedia(ctx context.Context, media *catalog.Media) (int64, error) {
	if (media.PlaceID == 0) == (media.ProductID == 0) {
		return 0, fmt.Errorf("media must reference exactly one of place or product")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *media
	cp.ID = c.nextIDLocked()
	cp.CreatedAt = time.Now()
	c.media[cp.ID] = &cp
	return cp.ID, nil
}

// ListMedia returns all media rows ordered by id.
func (c *Catalog) ListMedia(ctx context.Context) ([]catalog.Media, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var media []catalog.Media
	for _, id := range sortedKeys(c.media) {
		media = append(media, *c.media[id])
	}
	return media, nil
}

// SetMediaHash updates a media row's fingerprint.
func (c *Catalog) SetMediaHash(ctx context.Context, mediaID int64, fp dhash.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.media[mediaID]
	if !ok {
		return fmt.Errorf("media %d not found", mediaID)
	}
	m.DHash = fp
	return nil
}

// DeleteMedia removes a media row; its fingerprint leaves the candidate set
// with it.
func (c *Catalog) DeleteMedia(ctx context.Context, mediaID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.media[mediaID]; !ok {
		return fmt.Errorf("media %d not found", mediaID)
	}
	delete(c.media, mediaID)
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

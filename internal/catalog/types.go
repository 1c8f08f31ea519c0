// Package catalog defines the marketplace entities the recognizer works with
// and the read/write interfaces its storage backends implement.
package catalog

import (
	"context"
	"time"

	"github.com/tripmarket/placelens/internal/dhash"
)

// Place is a tour/attraction catalog entry. Recognition always resolves to a
// place, so places are the only possible owners of match candidates.
type Place struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Active      bool

	// ImageKey is the blob-store key of the primary image, empty when the
	// place has no image yet.
	ImageKey string
	// ImageDHash is the fingerprint of the primary image, zero when absent.
	ImageDHash dhash.Fingerprint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a purchasable tour. Its route visits places in order; the first
// route point determines which place a recognized product photo routes to.
type Product struct {
	ID         int64
	Name       string
	Slug       string
	Active     bool
	ImageKey   string
	ImageDHash dhash.Fingerprint

	// RoutePlaceIDs are the visited place ids in route order.
	RoutePlaceIDs []int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Media is a secondary image attached to a place or a product. Exactly one of
// PlaceID/ProductID is non-zero.
type Media struct {
	ID        int64
	PlaceID   int64
	ProductID int64
	Key       string
	DHash     dhash.Fingerprint
	CreatedAt time.Time
}

// Candidate associates a stored fingerprint with the place the recognizer
// should route to when that fingerprint wins a similarity query. Product-owned
// images are resolved to the product's first route place before they reach
// this type.
type Candidate struct {
	PlaceID     int64
	Fingerprint dhash.Fingerprint
}

// CandidateSource lists all fingerprints currently eligible for matching:
// every active place's primary image and secondary media, plus every active
// product's imagery attributed to its first route place. Products without a
// route contribute nothing. The listing is a fresh read per call and its
// order is deterministic for a given catalog state.
type CandidateSource interface {
	ListCandidates(ctx context.Context) ([]Candidate, error)
}

// PlaceReader resolves place ids after a successful match.
type PlaceReader interface {
	GetPlace(ctx context.Context, id int64) (*Place, error)
}

// Store is the full catalog surface used by ingestion and the admin API.
// The legacy MySQL backend implements only CandidateSource and PlaceReader;
// admin endpoints require the primary Postgres backend.
type Store interface {
	CandidateSource
	PlaceReader

	CreatePlace(ctx context.Context, place *Place) (int64, error)
	ListPlaces(ctx context.Context) ([]Place, error)
	SetPlaceImage(ctx context.Context, placeID int64, key string, fp dhash.Fingerprint) error

	CreateProduct(ctx context.Context, product *Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	SetProductImage(ctx context.Context, productID int64, key string, fp dhash.Fingerprint) error

	AddMedia(ctx context.Context, media *Media) (int64, error)
	ListMedia(ctx context.Context) ([]Media, error)
	SetMediaHash(ctx context.Context, mediaID int64, fp dhash.Fingerprint) error
	DeleteMedia(ctx context.Context, mediaID int64) error
}

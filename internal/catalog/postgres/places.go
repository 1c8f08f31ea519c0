package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// Repository provides the PostgreSQL-backed catalog store.
type Repository struct {
	pool *Pool
}

// NewRepository creates a new catalog repository.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

// nullHash converts a fingerprint to its stored form; absent fingerprints
// become NULL rather than a zero hash.
func nullHash(fp dhash.Fingerprint) sql.NullString {
	if fp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: fp.Hex(), Valid: true}
}

// scanHash parses a stored fingerprint column.
func scanHash(s sql.NullString) (dhash.Fingerprint, error) {
	if !s.Valid || s.String == "" {
		return dhash.Fingerprint{}, nil
	}
	return dhash.Parse(s.String)
}

// CreatePlace stores a new place and returns its id. An empty slug is derived
// from the name.
func (r *Repository) CreatePlace(ctx context.Context, place *catalog.Place) (int64, error) {
	slug := place.Slug
	if slug == "" {
		slug = catalog.Slugify(place.Name)
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO places (name, slug, description, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, place.Name, slug, place.Description, place.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert place: %w", err)
	}
	return id, nil
}

// GetPlace retrieves a place by id.
func (r *Repository) GetPlace(ctx context.Context, id int64) (*catalog.Place, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, description, active, image_key, image_dhash, created_at, updated_at
		FROM places
		WHERE id = $1
	`, id)

	place, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("place %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return place, nil
}

// ListPlaces returns all places ordered by id.
func (r *Repository) ListPlaces(ctx context.Context) ([]catalog.Place, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, slug, description, active, image_key, image_dhash, created_at, updated_at
		FROM places
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	var places []catalog.Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, *place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return places, nil
}

// SetPlaceImage replaces a place's primary image and its fingerprint.
func (r *Repository) SetPlaceImage(ctx context.Context, placeID int64, key string, fp dhash.Fingerprint) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE places
		SET image_key = $1, image_dhash = $2, updated_at = NOW()
		WHERE id = $3
	`, key, nullHash(fp), placeID)
	if err != nil {
		return fmt.Errorf("update place image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("place %d not found", placeID)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(s scanner) (*catalog.Place, error) {
	var place catalog.Place
	var hash sql.NullString

	if err := s.Scan(&place.ID, &place.Name, &place.Slug, &place.Description, &place.Active,
		&place.ImageKey, &hash, &place.CreatedAt, &place.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan place: %w", err)
	}

	fp, err := scanHash(hash)
	if err != nil {
		return nil, fmt.Errorf("place %d fingerprint: %w", place.ID, err)
	}
	place.ImageDHash = fp
	return &place, nil
}

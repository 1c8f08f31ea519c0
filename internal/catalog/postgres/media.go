package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// AddMedia attaches a secondary image to a place or product.
func (r *Repository) AddMedia(ctx context.Context, media *catalog.Media) (int64, error) {
	if (media.PlaceID == 0) == (media.ProductID == 0) {
		return 0, fmt.Errorf("media must reference exactly one of place or product")
	}

	var placeID, productID sql.NullInt64
	if media.PlaceID != 0 {
		placeID = sql.NullInt64{Int64: media.PlaceID, Valid: true}
	}
	if media.ProductID != 0 {
		productID = sql.NullInt64{Int64: media.ProductID, Valid: true}
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO media (place_id, product_id, key, dhash)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, placeID, productID, media.Key, nullHash(media.DHash)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert media: %w", err)
	}
	return id, nil
}

// ListMedia returns all media rows ordered by id.
func (r *Repository) ListMedia(ctx context.Context) ([]catalog.Media, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(place_id, 0), COALESCE(product_id, 0), key, dhash, created_at
		FROM media
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var media []catalog.Media
	for rows.Next() {
		var m catalog.Media
		var hash sql.NullString
		if err := rows.Scan(&m.ID, &m.PlaceID, &m.ProductID, &m.Key, &hash, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		fp, err := scanHash(hash)
		if err != nil {
			return nil, fmt.Errorf("media %d fingerprint: %w", m.ID, err)
		}
		m.DHash = fp
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return media, nil
}

// SetMediaHash updates a media row's fingerprint.
func (r *Repository) SetMediaHash(ctx context.Context, mediaID int64, fp dhash.Fingerprint) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE media SET dhash = $1 WHERE id = $2
	`, nullHash(fp), mediaID)
	if err != nil {
		return fmt.Errorf("update media hash: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("media %d not found", mediaID)
	}
	return nil
}

// DeleteMedia removes a media row; its fingerprint leaves the candidate set
// with it.
func (r *Repository) DeleteMedia(ctx context.Context, mediaID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, mediaID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("media %d not found", mediaID)
	}
	return nil
}

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// Source implements catalog.CandidateSource and catalog.PlaceReader over the
// legacy marketplace schema (tables place, product, media, route_point;
// fingerprints in place.imageDhash, product.imageDhash and media.dhash, stored
// as 64-character bit strings).
type Source struct {
	pool *Pool
}

// NewSource creates a read-only candidate source.
func NewSource(pool *Pool) *Source {
	return &Source{pool: pool}
}

// ListCandidates flattens the legacy catalog into the recognizer's candidate
// collection. Rows whose stored fingerprint fails to parse are skipped with a
// log line rather than failing the whole recognition request.
func (s *Source) ListCandidates(ctx context.Context) ([]catalog.Candidate, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT place_id, hash FROM (
			SELECT p.id AS place_id, p.imageDhash AS hash, 0 AS grp, p.id AS ord, 0 AS sub
			FROM place p
			WHERE p.active = 1 AND p.imageDhash IS NOT NULL

			UNION ALL

			SELECT p.id, m.dhash, 1, p.id, m.id
			FROM place p
			JOIN media m ON m.placeId = p.id
			WHERE p.active = 1 AND m.dhash IS NOT NULL

			UNION ALL

			SELECT rp.placeId, pr.imageDhash, 2, pr.id, 0
			FROM product pr
			JOIN route_point rp ON rp.productId = pr.id AND rp.position = 0
			WHERE pr.active = 1 AND pr.imageDhash IS NOT NULL

			UNION ALL

			SELECT rp.placeId, m.dhash, 3, pr.id, m.id
			FROM product pr
			JOIN route_point rp ON rp.productId = pr.id AND rp.position = 0
			JOIN media m ON m.productId = pr.id
			WHERE pr.active = 1 AND m.dhash IS NOT NULL
		) c
		ORDER BY grp, ord, sub
	`)
	if err != nil {
		return nil, fmt.Errorf("query legacy candidates: %w", err)
	}
	defer rows.Close()

	var candidates []catalog.Candidate
	for rows.Next() {
		var placeID int64
		var hash sql.NullString
		if err := rows.Scan(&placeID, &hash); err != nil {
			return nil, fmt.Errorf("scan legacy candidate: %w", err)
		}
		if !hash.Valid || hash.String == "" {
			continue
		}
		fp, err := dhash.Parse(hash.String)
		if err != nil {
			log.Printf("skipping unparsable fingerprint for place %d: %v", placeID, err)
			continue
		}
		candidates = append(candidates, catalog.Candidate{PlaceID: placeID, Fingerprint: fp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy candidates: %w", err)
	}
	return candidates, nil
}

// GetPlace resolves a matched place id against the legacy schema. The legacy
// catalog has no slug column, so the slug is derived from the name.
func (s *Source) GetPlace(ctx context.Context, id int64) (*catalog.Place, error) {
	var place catalog.Place
	var active int
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM place WHERE id = ?
	`, id).Scan(&place.ID, &place.Name, &active)
	if err != nil {
		return nil, fmt.Errorf("query legacy place %d: %w", id, err)
	}
	place.Active = active == 1
	place.Slug = catalog.Slugify(place.Name)
	return &place, nil
}

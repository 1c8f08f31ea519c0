package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tripmarket/placelens/internal/catalog"
)

// ListCandidates derives the match candidate collection specified for the
// recognizer: every active place contributes its primary-image fingerprint and
// its secondary-media fingerprints; every active product contributes its
// fingerprints under the place of its first route point. Products without a
// route are excluded by the inner join on position 0. The UNION ALL branches
// are ordered so places come before products and primary images before media,
// making tie-breaks reproducible for a given catalog state.
func (r *Repository) ListCandidates(ctx context.Context) ([]catalog.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT place_id, hash FROM (
			SELECT p.id AS place_id, p.image_dhash AS hash, 0 AS grp, p.id AS ord, 0 AS sub
			FROM places p
			WHERE p.active AND p.image_dhash IS NOT NULL

			UNION ALL

			SELECT p.id, m.dhash, 1, p.id, m.id
			FROM places p
			JOIN media m ON m.place_id = p.id
			WHERE p.active AND m.dhash IS NOT NULL

			UNION ALL

			SELECT rp.place_id, pr.image_dhash, 2, pr.id, 0
			FROM products pr
			JOIN route_points rp ON rp.product_id = pr.id AND rp.position = 0
			WHERE pr.active AND pr.image_dhash IS NOT NULL

			UNION ALL

			SELECT rp.place_id, m.dhash, 3, pr.id, m.id
			FROM products pr
			JOIN route_points rp ON rp.product_id = pr.id AND rp.position = 0
			JOIN media m ON m.product_id = pr.id
			WHERE pr.active AND m.dhash IS NOT NULL
		) c
		ORDER BY grp, ord, sub
	`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []catalog.Candidate
	for rows.Next() {
		var placeID int64
		var hash sql.NullString
		if err := rows.Scan(&placeID, &hash); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		fp, err := scanHash(hash)
		if err != nil {
			return nil, fmt.Errorf("candidate for place %d: %w", placeID, err)
		}
		if fp.IsZero() {
			continue
		}
		candidates = append(candidates, catalog.Candidate{PlaceID: placeID, Fingerprint: fp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

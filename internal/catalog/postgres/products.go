package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/dhash"
)

// CreateProduct stores a new product with its route points in one transaction.
func (r *Repository) CreateProduct(ctx context.Context, product *catalog.Product) (int64, error) {
	slug := product.Slug
	if slug == "" {
		slug = catalog.Slugify(product.Name)
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (name, slug, active)
		VALUES ($1, $2, $3)
		RETURNING id
	`, product.Name, slug, product.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}

	for i, placeID := range product.RoutePlaceIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO route_points (product_id, place_id, position)
			VALUES ($1, $2, $3)
		`, id, placeID, i); err != nil {
			return 0, fmt.Errorf("insert route point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit product: %w", err)
	}
	return id, nil
}

// GetProduct retrieves a product by id, including its route in order.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.slug, p.active, p.image_key, p.image_dhash, p.created_at, p.updated_at,
		       COALESCE(ARRAY_AGG(rp.place_id ORDER BY rp.position) FILTER (WHERE rp.place_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN route_points rp ON rp.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id
	`, id)

	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns all products with their routes, ordered by id.
func (r *Repository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.slug, p.active, p.image_key, p.image_dhash, p.created_at, p.updated_at,
		       COALESCE(ARRAY_AGG(rp.place_id ORDER BY rp.position) FILTER (WHERE rp.place_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN route_points rp ON rp.product_id = p.id
		GROUP BY p.id
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// SetProductImage replaces a product's primary image and its fingerprint.
func (r *Repository) SetProductImage(ctx context.Context, productID int64, key string, fp dhash.Fingerprint) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE products
		SET image_key = $1, image_dhash = $2, updated_at = NOW()
		WHERE id = $3
	`, key, nullHash(fp), productID)
	if err != nil {
		return fmt.Errorf("update product image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d not found", productID)
	}
	return nil
}

func scanProduct(s scanner) (*catalog.Product, error) {
	var product catalog.Product
	var hash sql.NullString
	var route pq.Int64Array

	if err := s.Scan(&product.ID, &product.Name, &product.Slug, &product.Active,
		&product.ImageKey, &hash, &product.CreatedAt, &product.UpdatedAt, &route); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	fp, err := scanHash(hash)
	if err != nil {
		return nil, fmt.Errorf("product %d fingerprint: %w", product.ID, err)
	}
	product.ImageDHash = fp
	product.RoutePlaceIDs = []int64(route)
	return &product, nil
}

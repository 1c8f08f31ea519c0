//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/dhash"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func mustFingerprint(t *testing.T, v uint64) dhash.Fingerprint {
	t.Helper()
	return dhash.New(v)
}

func TestRepository_Places(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		id, err := repo.CreatePlace(ctx, &catalog.Place{
			Name:        "Zámek Hluboká",
			Description: "Neo-Gothic castle above the Vltava",
			Active:      true,
		})
		if err != nil {
			t.Fatalf("Failed to create place: %v", err)
		}

		place, err := repo.GetPlace(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get place: %v", err)
		}
		if place.Name != "Zámek Hluboká" {
			t.Errorf("Expected name 'Zámek Hluboká', got '%s'", place.Name)
		}
		if place.Slug != "zamek-hluboka" {
			t.Errorf("Expected slug 'zamek-hluboka', got '%s'", place.Slug)
		}
		if !place.ImageDHash.IsZero() {
			t.Error("Expected a fresh place to carry no fingerprint")
		}
	})

	t.Run("SetImage", func(t *testing.T) {
		id, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Karlštejn", Active: true})
		if err != nil {
			t.Fatalf("Failed to create place: %v", err)
		}

		fp := mustFingerprint(t, 0xD1CEB00519AFE770)
		if err := repo.SetPlaceImage(ctx, id, "catalog/karlstejn.jpg", fp); err != nil {
			t.Fatalf("Failed to set place image: %v", err)
		}

		place, err := repo.GetPlace(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get place: %v", err)
		}
		if place.ImageKey != "catalog/karlstejn.jpg" {
			t.Errorf("Expected image key to round-trip, got '%s'", place.ImageKey)
		}
		if place.ImageDHash.Uint64() != fp.Uint64() {
			t.Errorf("Expected fingerprint %s, got %s", fp.Hex(), place.ImageDHash.Hex())
		}
	})

	t.Run("List", func(t *testing.T) {
		places, err := repo.ListPlaces(ctx)
		if err != nil {
			t.Fatalf("Failed to list places: %v", err)
		}
		if len(places) < 2 {
			t.Errorf("Expected at least 2 places, got %d", len(places))
		}
	})
}

func TestRepository_Products(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	placeID, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Prague Castle", Active: true})
	if err != nil {
		t.Fatalf("Failed to create place: %v", err)
	}
	otherID, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Petřín", Active: true})
	if err != nil {
		t.Fatalf("Failed to create place: %v", err)
	}

	t.Run("RouteRoundTrip", func(t *testing.T) {
		id, err := repo.CreateProduct(ctx, &catalog.Product{
			Name:          "Castle and Petřín Tour",
			Active:        true,
			RoutePlaceIDs: []int64{placeID, otherID},
		})
		if err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}

		product, err := repo.GetProduct(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get product: %v", err)
		}
		if len(product.RoutePlaceIDs) != 2 {
			t.Fatalf("Expected 2 route points, got %d", len(product.RoutePlaceIDs))
		}
		if product.RoutePlaceIDs[0] != placeID || product.RoutePlaceIDs[1] != otherID {
			t.Errorf("Expected route [%d %d], got %v", placeID, otherID, product.RoutePlaceIDs)
		}
	})

	t.Run("WithoutRoute", func(t *testing.T) {
		id, err := repo.CreateProduct(ctx, &catalog.Product{Name: "Street Food Crawl", Active: true})
		if err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}

		product, err := repo.GetProduct(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get product: %v", err)
		}
		if len(product.RoutePlaceIDs) != 0 {
			t.Errorf("Expected no route points, got %v", product.RoutePlaceIDs)
		}
	})

	t.Run("SetImage", func(t *testing.T) {
		id, err := repo.CreateProduct(ctx, &catalog.Product{Name: "Night Photo Walk", Active: true})
		if err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}

		fp := mustFingerprint(t, 0x0123456789ABCDEF)
		if err := repo.SetProductImage(ctx, id, "catalog/walk.jpg", fp); err != nil {
			t.Fatalf("Failed to set product image: %v", err)
		}

		product, err := repo.GetProduct(ctx, id)
		if err != nil {
			t.Fatalf("Failed to get product: %v", err)
		}
		if product.ImageDHash.Uint64() != fp.Uint64() {
			t.Errorf("Expected fingerprint %s, got %s", fp.Hex(), product.ImageDHash.Hex())
		}
	})
}

func TestRepository_Media(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	placeID, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Dancing House", Active: true})
	if err != nil {
		t.Fatalf("Failed to create place: %v", err)
	}

	t.Run("AddListDelete", func(t *testing.T) {
		fp := mustFingerprint(t, 0xFEEDFACECAFEBEEF)
		mediaID, err := repo.AddMedia(ctx, &catalog.Media{
			PlaceID: placeID,
			Key:     "catalog/detail.jpg",
			DHash:   fp,
		})
		if err != nil {
			t.Fatalf("Failed to add media: %v", err)
		}

		media, err := repo.ListMedia(ctx)
		if err != nil {
			t.Fatalf("Failed to list media: %v", err)
		}
		if len(media) != 1 {
			t.Fatalf("Expected 1 media row, got %d", len(media))
		}
		if media[0].PlaceID != placeID {
			t.Errorf("Expected media attached to place %d, got %d", placeID, media[0].PlaceID)
		}
		if media[0].DHash.Uint64() != fp.Uint64() {
			t.Errorf("Expected fingerprint %s, got %s", fp.Hex(), media[0].DHash.Hex())
		}

		if err := repo.DeleteMedia(ctx, mediaID); err != nil {
			t.Fatalf("Failed to delete media: %v", err)
		}

		media, err = repo.ListMedia(ctx)
		if err != nil {
			t.Fatalf("Failed to list media: %v", err)
		}
		if len(media) != 0 {
			t.Errorf("Expected no media rows after delete, got %d", len(media))
		}
	})

	t.Run("RejectsDanglingReference", func(t *testing.T) {
		if _, err := repo.AddMedia(ctx, &catalog.Media{Key: "catalog/orphan.jpg"}); err == nil {
			t.Error("Expected an error for media without an owner")
		}
	})
}

func TestRepository_ListCandidates(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	activeID, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Prague Castle", Active: true})
	if err != nil {
		t.Fatalf("Failed to create place: %v", err)
	}
	if err := repo.SetPlaceImage(ctx, activeID, "catalog/castle.jpg", mustFingerprint(t, 0x1111111111111111)); err != nil {
		t.Fatalf("Failed to set place image: %v", err)
	}
	if _, err := repo.AddMedia(ctx, &catalog.Media{
		PlaceID: activeID,
		Key:     "catalog/castle-2.jpg",
		DHash:   mustFingerprint(t, 0x2222222222222222),
	}); err != nil {
		t.Fatalf("Failed to add place media: %v", err)
	}

	// Inactive place imagery must never become a candidate.
	inactiveID, err := repo.CreatePlace(ctx, &catalog.Place{Name: "Closed Museum", Active: false})
	if err != nil {
		t.Fatalf("Failed to create place: %v", err)
	}
	if err := repo.SetPlaceImage(ctx, inactiveID, "catalog/museum.jpg", mustFingerprint(t, 0x3333333333333333)); err != nil {
		t.Fatalf("Failed to set place image: %v", err)
	}

	// Routed product: contributes under its first route point's place.
	routedID, err := repo.CreateProduct(ctx, &catalog.Product{
		Name:          "Castle Guided Tour",
		Active:        true,
		RoutePlaceIDs: []int64{activeID, inactiveID},
	})
	if err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	if err := repo.SetProductImage(ctx, routedID, "catalog/tour.jpg", mustFingerprint(t, 0x4444444444444444)); err != nil {
		t.Fatalf("Failed to set product image: %v", err)
	}

	// Routeless product: its imagery is excluded from recognition.
	routelessID, err := repo.CreateProduct(ctx, &catalog.Product{Name: "Street Food Crawl", Active: true})
	if err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	if err := repo.SetProductImage(ctx, routelessID, "catalog/food.jpg", mustFingerprint(t, 0x5555555555555555)); err != nil {
		t.Fatalf("Failed to set product image: %v", err)
	}

	candidates, err := repo.ListCandidates(ctx)
	if err != nil {
		t.Fatalf("Failed to list candidates: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(candidates))
	}
	for i, c := range candidates {
		if c.PlaceID != activeID {
			t.Errorf("Candidate %d: expected place %d, got %d", i, activeID, c.PlaceID)
		}
	}

	// Place primary first, then place media, then routed products.
	if candidates[0].Fingerprint.Uint64() != 0x1111111111111111 {
		t.Errorf("Expected place primary first, got %s", candidates[0].Fingerprint.Hex())
	}
	if candidates[1].Fingerprint.Uint64() != 0x2222222222222222 {
		t.Errorf("Expected place media second, got %s", candidates[1].Fingerprint.Hex())
	}
	if candidates[2].Fingerprint.Uint64() != 0x4444444444444444 {
		t.Errorf("Expected routed product third, got %s", candidates[2].Fingerprint.Hex())
	}
}

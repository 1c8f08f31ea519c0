package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripmarket/placelens/internal/catalog"
	"github.com/tripmarket/placelens/internal/catalog/mysql"
	"github.com/tripmarket/placelens/internal/catalog/postgres"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/storage"
)

// catalogBackend bundles the readers and the optional writable store opened
// for the configured database.
type catalogBackend struct {
	source catalog.CandidateSource
	places catalog.PlaceReader
	admin  catalog.Store // nil in read-only legacy mode
	repo   *postgres.Repository
	close  func()
}

// openCatalog connects to the configured catalog database. PostgreSQL is the
// primary backend; when only the legacy marketplace MySQL DSN is set, the
// recognizer runs read-only against the original schema.
func openCatalog(ctx context.Context, cfg *config.Config) (*catalogBackend, error) {
	switch {
	case cfg.Database.URL != "":
		fmt.Println("Connecting to PostgreSQL database...")
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		repo := postgres.NewRepository(pool)
		return &catalogBackend{
			source: repo,
			places: repo,
			admin:  repo,
			repo:   repo,
			close:  func() { _ = pool.Close() },
		}, nil

	case cfg.Legacy.DSN != "":
		fmt.Println("Connecting to legacy marketplace MySQL database (read-only)...")
		pool, err := mysql.NewPool(cfg.Legacy.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
		}
		src := mysql.NewSource(pool)
		return &catalogBackend{
			source: src,
			places: src,
			close:  func() { _ = pool.Close() },
		}, nil

	default:
		return nil, errors.New("DATABASE_URL or LEGACY_DATABASE_DSN environment variable is required")
	}
}

// openStorage connects to the configured object storage, falling back to an
// in-memory store when no endpoint is set.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Endpoint == "" {
		fmt.Println("STORAGE_ENDPOINT not set, using in-memory blob storage")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewMinioStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	fmt.Printf("Using object storage at %s (bucket %s)\n", cfg.Storage.Endpoint, cfg.Storage.Bucket)
	return store, nil
}

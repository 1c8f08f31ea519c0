package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tripmarket/placelens/internal/catalog/postgres"
	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/dhash"
	"github.com/tripmarket/placelens/internal/storage"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Recompute fingerprints for all stored catalog images",
	Long: `Reindex reads every catalog image back from the blob store, recomputes its
difference-hash fingerprint and persists the result. Run it after restoring a
database dump whose fingerprints are stale or missing.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

// reindexTarget is one stored image with its persistence callback.
type reindexTarget struct {
	key   string
	label string
	save  func(ctx context.Context, fp dhash.Fingerprint) error
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	backend, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	if backend.repo == nil {
		return errors.New("reindex requires the primary PostgreSQL backend")
	}
	repo := backend.repo

	blobs, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	targets, err := collectReindexTargets(ctx, repo)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("No stored images to reindex.")
		return nil
	}

	bar := progressbar.NewOptions(len(targets),
		progressbar.OptionSetDescription("Reindexing fingerprints"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var failed int
	for _, target := range targets {
		if err := reindexOne(ctx, blobs, target); err != nil {
			fmt.Printf("\n%s: %v\n", target.label, err)
			failed++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed to reindex", failed, len(targets))
	}
	fmt.Printf("Reindexed %d images\n", len(targets))
	return nil
}

func reindexOne(ctx context.Context, blobs storage.Store, target reindexTarget) error {
	data, err := blobs.Get(ctx, target.key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target.key, err)
	}
	fp, err := dhash.Compute(data)
	if err != nil {
		return fmt.Errorf("hash %s: %w", target.key, err)
	}
	if err := target.save(ctx, fp); err != nil {
		return fmt.Errorf("persist fingerprint: %w", err)
	}
	return nil
}

func collectReindexTargets(ctx context.Context, repo *postgres.Repository) ([]reindexTarget, error) {
	var targets []reindexTarget

	places, err := repo.ListPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	for _, place := range places {
		if place.ImageKey == "" {
			continue
		}
		id, key := place.ID, place.ImageKey
		targets = append(targets, reindexTarget{
			key:   key,
			label: fmt.Sprintf("place %d", id),
			save: func(ctx context.Context, fp dhash.Fingerprint) error {
				return repo.SetPlaceImage(ctx, id, key, fp)
			},
		})
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for _, product := range products {
		if product.ImageKey == "" {
			continue
		}
		id, key := product.ID, product.ImageKey
		targets = append(targets, reindexTarget{
			key:   key,
			label: fmt.Sprintf("product %d", id),
			save: func(ctx context.Context, fp dhash.Fingerprint) error {
				return repo.SetProductImage(ctx, id, key, fp)
			},
		})
	}

	media, err := repo.ListMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	for _, m := range media {
		id, key := m.ID, m.Key
		targets = append(targets, reindexTarget{
			key:   key,
			label: fmt.Sprintf("media %d", id),
			save: func(ctx context.Context, fp dhash.Fingerprint) error {
				return repo.SetMediaHash(ctx, id, fp)
			},
		})
	}

	return targets, nil
}

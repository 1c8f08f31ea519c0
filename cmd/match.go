package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripmarket/placelens/internal/config"
	"github.com/tripmarket/placelens/internal/recognizer"
)

var matchCmd = &cobra.Command{
	Use:   "match <image-file>",
	Short: "Match a local image against the configured catalog",
	Long: `Match runs the same recognition pipeline as the API endpoint against a
local file: compute the image's fingerprint, scan the catalog's stored
fingerprints and print the closest place below the threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Int("threshold", 0, "Override the acceptance threshold (bits out of 64)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	backend, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	threshold := cfg.Recognizer.Threshold
	if flagThreshold := mustGetInt(cmd, "threshold"); flagThreshold > 0 {
		threshold = flagThreshold
	}

	service := recognizer.NewService(backend.source, threshold)
	match, err := service.Recognize(ctx, data)
	if errors.Is(err, recognizer.ErrNoMatch) {
		fmt.Println("No place matched below the threshold.")
		return nil
	}
	if err != nil {
		return err
	}

	place, err := backend.places.GetPlace(ctx, match.PlaceID)
	if err != nil {
		return fmt.Errorf("loading matched place %d: %w", match.PlaceID, err)
	}

	fmt.Printf("Matched place %d (%s) at distance %d\n", place.ID, place.Name, match.Distance)
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripmarket/placelens/internal/dhash"
)

var hashCmd = &cobra.Command{
	Use:   "hash <image-file>",
	Short: "Compute the difference-hash fingerprint of a local image",
	Args:  cobra.ExactArgs(1),
	RunE:  runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().Bool("bits", false, "Print the fingerprint as a 64-character bit string")
}

func runHash(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	fp, err := dhash.Compute(data)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", args[0], err)
	}

	if mustGetBool(cmd, "bits") {
		fmt.Println(fp.BitString())
	} else {
		fmt.Println(fp.Hex())
	}
	return nil
}

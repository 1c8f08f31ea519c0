package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "placelens",
	Short: "Image recognition service for the tour marketplace catalog",
	Long: `Placelens matches visitor photos against the marketplace catalog using
64-bit difference-hash fingerprints. It serves the recognition API, maintains
fingerprints for catalog imagery at upload time, and ships operator tools for
hashing and matching images from the command line.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

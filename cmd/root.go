package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-dedup",
	Short: "Find and remove near-duplicate photos",
	Long: `Photo Dedup scans a photo gallery (a local directory or a PhotoPrism
library) in batches, describes every photo by its body pose or color
histogram, and groups shots of the same moment taken within a few minutes
of each other so all but the best copy can be deleted.`,
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

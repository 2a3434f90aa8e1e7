package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect the vector collection",
}

var collectionStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record count and dimensionality",
	Args:  cobra.NoArgs,
	RunE:  runCollectionStats,
}

func init() {
	collectionCmd.AddCommand(collectionStatsCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	release, err := connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if healthService == nil {
		return errUnconfigured("health")
	}

	stats, err := healthService.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading collection: %w", err)
	}
	renderStats(cmd.OutOrStdout(), stats)
	return nil
}

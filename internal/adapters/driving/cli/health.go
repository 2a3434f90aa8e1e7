package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check embedding backends and the vector store",
	Long:  `Pings every configured embedding backend and the vector store and reports latency.`,
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	release, err := connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if healthService == nil {
		return errUnconfigured("health")
	}

	statuses := healthService.Check(ctx)
	renderHealth(cmd.OutOrStdout(), statuses)

	unhealthy := 0
	for _, s := range statuses {
		if !s.Healthy() {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d components unhealthy", unhealthy, len(statuses))
	}
	return nil
}

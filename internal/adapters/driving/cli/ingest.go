package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|s3://bucket/prefix>...",
	Short: "Index files, directories or S3 objects",
	Long: `Reads every supported document (plain text, Markdown, HTML) under each
target, then chunks, embeds and indexes it. Re-ingesting a document replaces
its previous records.

Targets may be local files, directories (walked recursively, hidden entries
skipped) or S3 URIs such as s3://bucket/docs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	release, err := connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if syncOrchestrator == nil || openSource == nil {
		return errUnconfigured("sync")
	}

	failed := 0
	for _, target := range args {
		source, err := openSource(ctx, target)
		if err != nil {
			return err
		}

		report, err := syncOrchestrator.Sync(ctx, source)
		closeErr := source.Close()
		if err != nil {
			return fmt.Errorf("ingest %s: %w", target, err)
		}
		if closeErr != nil {
			return fmt.Errorf("closing %s: %w", target, closeErr)
		}

		renderSyncReport(cmd.OutOrStdout(), target, report)
		failed += report.Failed
	}

	if failed > 0 {
		return fmt.Errorf("%d documents failed to ingest", failed)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

var watchSkipSync bool

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep the index in sync with a directory",
	Long: `Ingests the directory, then watches it: files that are written are
re-ingested and files that are removed have their records deleted. Runs until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSkipSync, "skip-sync", false, "skip the initial full ingest")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	release, err := connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if syncOrchestrator == nil || openSource == nil {
		return errUnconfigured("sync")
	}

	source, err := openSource(ctx, args[0])
	if err != nil {
		return err
	}
	defer source.Close()

	watchable, ok := source.(driven.WatchableSource)
	if !ok {
		return fmt.Errorf("%s sources cannot be watched: %w", source.Type(), domain.ErrInvalidInput)
	}

	out := cmd.OutOrStdout()
	if !watchSkipSync {
		report, err := syncOrchestrator.Sync(ctx, watchable)
		if err != nil {
			return fmt.Errorf("initial ingest: %w", err)
		}
		renderSyncReport(out, args[0], report)
	}

	fmt.Fprintln(out, style.Muted.Render("Watching "+args[0]+" (Ctrl+C to stop)"))
	return syncOrchestrator.Watch(ctx, watchable, func(change domain.RawDocumentChange, r *domain.IngestionResult, err error) {
		if change.Type == domain.ChangeDeleted {
			if err != nil {
				fmt.Fprintf(out, "  %s %s: %v\n", style.Error.Render("failed"), change.Document.DocumentID(), err)
				return
			}
			fmt.Fprintf(out, "  %s %s\n", style.Warning.Render("removed"), change.Document.DocumentID())
			return
		}
		renderResult(out, r, err)
	})
}

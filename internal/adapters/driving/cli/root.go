// Package cli implements the kb command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/config/file"
	"github.com/jbrcoleman/bedrock-vector-search/internal/app"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// Services used by commands. connect populates them from configuration;
// tests assign them directly.
var (
	ingestService    driving.IngestionService
	queryService     driving.QueryService
	healthService    driving.HealthService
	syncOrchestrator driving.SyncOrchestrator
	openSource       func(ctx context.Context, target string) (driven.DocumentSource, error)
)

// connect builds services for commands that need them and returns a
// function releasing them.
var connect = connectFromConfig

// newSettingsStore opens the settings file named by --config.
var newSettingsStore = func(path string) (driven.SettingsStore, error) {
	return file.NewConfigStore(path)
}

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Local knowledge base with vector search",
	Long: `kb chunks documents, embeds them with Amazon Bedrock (falling back across
Titan v1, Titan v2 and Cohere v3, or any configured backend) and stores the
vectors for similarity search. Questions are answered with ranked,
deduplicated context passages.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.kb/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func connectFromConfig(ctx context.Context) (func(), error) {
	store, err := newSettingsStore(configPath)
	if err != nil {
		return nil, err
	}
	settings, err := store.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("config: %s", store.Path())

	a, err := app.New(ctx, settings, app.Options{})
	if err != nil {
		return nil, err
	}

	ingestService = a.Ingest
	queryService = a.Query
	healthService = a.Health
	syncOrchestrator = a.Sync
	openSource = a.OpenSource

	return func() {
		if err := a.Close(); err != nil {
			logger.Warn("close: %v", err)
		}
	}, nil
}

// errUnconfigured names a service that connect did not provide.
func errUnconfigured(name string) error {
	return errors.New(name + " service not configured")
}

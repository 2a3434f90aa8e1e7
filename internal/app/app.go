// Package app wires settings into adapters and core services.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/ai"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/metrics"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage/memory"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage/pgvector"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage/qdrant"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage/sqlite"
	"github.com/jbrcoleman/bedrock-vector-search/internal/connectors/filesystem"
	"github.com/jbrcoleman/bedrock-vector-search/internal/connectors/s3"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/services"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers/html"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers/markdown"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers/plaintext"
	"github.com/jbrcoleman/bedrock-vector-search/internal/postprocessors"
)

// App holds the wired services for one process.
type App struct {
	Settings    domain.Settings
	Backends    []driven.EmbeddingBackend
	Store       driven.VectorStore
	Metrics     driven.MetricsSink
	Normalisers *normalisers.Registry

	Embedder *services.EmbeddingProvider
	Ingest   *services.IngestionService
	Query    *services.QueryService
	Health   *services.HealthService
	Sync     *services.SyncOrchestrator
}

// Options override adapters, mainly for tests.
type Options struct {
	// Backends replaces the configured embedding chain.
	Backends []driven.EmbeddingBackend

	// Store replaces the configured vector store.
	Store driven.VectorStore
}

// New builds every adapter and service from settings.
func New(ctx context.Context, settings domain.Settings, opts Options) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	chunker, err := postprocessors.NewDefaultRegistry().Build(settings.Chunker)
	if err != nil {
		return nil, err
	}

	sink, err := NewMetrics(settings.Metrics)
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, Metrics: sink, Normalisers: NewNormalisers()}

	a.Backends = opts.Backends
	if a.Backends == nil {
		if a.Backends, err = ai.CreateBackends(ctx, settings.Embedding); err != nil {
			return nil, err
		}
	}

	a.Store = opts.Store
	if a.Store == nil {
		if a.Store, err = NewStore(ctx, settings.VectorStore); err != nil {
			if closeErr := ai.CloseBackends(a.Backends); closeErr != nil {
				logger.Warn("app: close embedding backends: %v", closeErr)
			}
			return nil, err
		}
	}

	a.Embedder, err = services.NewEmbeddingProvider(a.Backends, services.NewRetryPolicy(settings.Embedding), sink)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Ingest = services.NewIngestionService(chunker, a.Embedder, a.Store, a.Normalisers, sink, services.NewIngestConfig(settings))
	a.Query = services.NewQueryService(a.Embedder, a.Store, sink, settings.Query)
	a.Health = services.NewHealthService(a.Backends, a.Store)
	a.Sync = services.NewSyncOrchestrator(a.Ingest)

	logger.Debug("app: %d embedding backends, %s store, %s metrics",
		len(a.Backends), settings.VectorStore.Type, settings.Metrics.Type)
	return a, nil
}

// Close releases the store and every backend.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	errs = append(errs, ai.CloseBackends(a.Backends))
	return errors.Join(errs...)
}

// NewNormalisers returns a registry with the built-in normalisers.
func NewNormalisers() *normalisers.Registry {
	r := normalisers.NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	return r
}

// NewStore opens the configured vector store.
func NewStore(ctx context.Context, s domain.VectorStoreSettings) (driven.VectorStore, error) {
	switch s.Type {
	case domain.StoreMemory:
		return memory.New(s.Collection, s.Dimensions), nil

	case domain.StoreSQLite, "":
		store, err := sqlite.NewStore(ctx, s.Path, s.Collection, s.Dimensions)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.StoreQdrant:
		store, err := qdrant.New(ctx, qdrant.Config{
			URL:        qdrantURL(s),
			Collection: s.Collection,
			APIKey:     s.APIKey,
			Dimensions: s.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.StorePGVector:
		store, err := pgvector.New(ctx, pgvector.Config{
			DSN:        s.DSN,
			Table:      s.Collection,
			Dimensions: s.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, &domain.ConfigurationError{Field: "vector_store.type", Reason: fmt.Sprintf("unknown store %q", s.Type)}
	}
}

func qdrantURL(s domain.VectorStoreSettings) string {
	scheme := "http"
	if s.UseTLS {
		scheme = "https"
	}
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = 6334
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// NewMetrics creates the configured metrics sink.
func NewMetrics(s domain.MetricsSettings) (driven.MetricsSink, error) {
	switch s.Type {
	case domain.MetricsNone:
		return metrics.Nop{}, nil
	case domain.MetricsLog, "":
		return metrics.Log{}, nil
	case domain.MetricsOTel:
		otelSink, err := metrics.NewOTel(otel.Meter(s.MeterName))
		if err != nil {
			return nil, err
		}
		return metrics.NewMulti(metrics.Log{}, otelSink), nil
	default:
		return nil, &domain.ConfigurationError{Field: "metrics.type", Reason: fmt.Sprintf("unknown sink %q", s.Type)}
	}
}

// OpenSource resolves a path or s3:// URI to a document source. The AWS
// region of the first Bedrock backend is reused for S3.
func (a *App) OpenSource(ctx context.Context, target string) (driven.DocumentSource, error) {
	if s3.IsURI(target) {
		src, err := s3.Open(ctx, target, a.region())
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	if _, err := os.Stat(target); err != nil {
		return nil, fmt.Errorf("path %s does not exist: %w", target, domain.ErrNotFound)
	}
	return filesystem.New(target), nil
}

func (a *App) region() string {
	for _, b := range a.Settings.Embedding.Backends {
		if b.Type == domain.BackendBedrock && b.Region != "" {
			return b.Region
		}
	}
	return ""
}

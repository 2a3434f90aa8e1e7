// Package ai provides factory functions for creating embedding backends.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding/bedrock"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding/ollama"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding/openai"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
)

// CreateBackends creates the fallback chain in configured order. If any
// backend cannot be created, those already created are closed.
func CreateBackends(ctx context.Context, settings domain.EmbeddingSettings) ([]driven.EmbeddingBackend, error) {
	if len(settings.Backends) == 0 {
		return nil, &domain.ConfigurationError{Field: "embedding.backends", Reason: "at least one backend is required"}
	}

	backends := make([]driven.EmbeddingBackend, 0, len(settings.Backends))
	for i, s := range settings.Backends {
		b, err := CreateBackend(ctx, s)
		if err != nil {
			if closeErr := CloseBackends(backends); closeErr != nil {
				logger.Warn("embedding backends: close: %v", closeErr)
			}
			return nil, fmt.Errorf("embedding backend %d (%s): %w", i, s.DisplayName(), err)
		}
		logger.Debug("embedding backend %d: %s (%s, %d dims)", i, b.Name(), b.ModelName(), b.Dimensions())
		backends = append(backends, b)
	}
	return backends, nil
}

// CreateBackend creates one backend, rate limited when configured.
func CreateBackend(ctx context.Context, s domain.BackendSettings) (driven.EmbeddingBackend, error) {
	var (
		b   driven.EmbeddingBackend
		err error
	)

	switch s.Type {
	case domain.BackendBedrock:
		b, err = createBedrock(ctx, s)

	case domain.BackendOpenAI:
		b, err = createOpenAI(s)

	case domain.BackendOllama:
		b = createOllama(s)

	default:
		return nil, &domain.ConfigurationError{
			Field:  "embedding.backends.type",
			Reason: fmt.Sprintf("unsupported embedding backend: %s", s.Type),
		}
	}
	if err != nil {
		return nil, err
	}

	return embedding.WithRateLimit(b, s.RequestsPerSecond, s.Burst), nil
}

// createBedrock creates a Bedrock backend using the default AWS credential chain.
func createBedrock(ctx context.Context, s domain.BackendSettings) (driven.EmbeddingBackend, error) {
	return bedrock.New(ctx, bedrock.Config{
		Name:       s.Name,
		Region:     s.Region,
		Model:      s.Model,
		Dimensions: s.Dimensions,
		BatchSize:  s.BatchSize,
		Timeout:    s.Timeout,
	})
}

// createOpenAI creates an OpenAI backend.
func createOpenAI(s domain.BackendSettings) (driven.EmbeddingBackend, error) {
	return openai.New(openai.Config{
		Name:       s.Name,
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		Model:      s.Model,
		Timeout:    s.Timeout,
		Dimensions: s.Dimensions,
		BatchSize:  s.BatchSize,
	})
}

// createOllama creates an Ollama backend.
func createOllama(s domain.BackendSettings) driven.EmbeddingBackend {
	return ollama.New(ollama.Config{
		Name:       s.Name,
		BaseURL:    s.BaseURL,
		Model:      s.Model,
		Timeout:    s.Timeout,
		Dimensions: s.Dimensions,
		BatchSize:  s.BatchSize,
	})
}

// CloseBackends closes every backend, joining their errors.
func CloseBackends(backends []driven.EmbeddingBackend) error {
	var errs []error
	for _, b := range backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]domain.EmbeddingVector, error)
}

// Ensure EmbeddingProvider implements the interface.
var _ Embedder = (*EmbeddingProvider)(nil)

// EmbeddingProvider embeds texts through an ordered chain of backends.
// Backends are tried strictly in priority order; the call fails only when
// every eligible backend has failed.
//
// Within an EmbeddingRun the first successful backend becomes sticky and is
// tried first by every later call. After the sticky backend fails, fallback
// is limited to backends of the same dimensionality so that vectors from
// one run stay comparable.
type EmbeddingProvider struct {
	backends []driven.EmbeddingBackend
	retry    RetryPolicy
	metrics  driven.MetricsSink
}

// NewEmbeddingProvider creates a provider over backends in priority order.
// The metrics sink is optional (can be nil).
func NewEmbeddingProvider(
	backends []driven.EmbeddingBackend,
	retry RetryPolicy,
	metrics driven.MetricsSink,
) (*EmbeddingProvider, error) {
	if len(backends) == 0 {
		return nil, &domain.ConfigurationError{Field: "embedding.backends", Reason: "at least one backend is required"}
	}
	return &EmbeddingProvider{
		backends: backends,
		retry:    retry,
		metrics:  metrics,
	}, nil
}

// Backends returns the chain in priority order.
func (p *EmbeddingProvider) Backends() []driven.EmbeddingBackend {
	return p.backends
}

// Embed returns one vector per text.
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([]domain.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	run := EmbeddingRunFrom(ctx)
	vectors, used, err := p.embedChain(ctx, p.chain(run), texts)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return vectors, nil
	}

	if winner := run.claim(used, p.backends[used].Name()); winner != used {
		// A concurrent call claimed the run first; redo this input so the
		// run never mixes vectors from two models.
		vectors, _, err = p.embedChain(ctx, p.chain(run), texts)
		if err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Close closes every backend.
func (p *EmbeddingProvider) Close() error {
	var errs []error
	for _, b := range p.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// chain returns backend indices in the order they should be tried.
func (p *EmbeddingProvider) chain(run *EmbeddingRun) []int {
	order := make([]int, 0, len(p.backends))
	if run != nil {
		if sticky, ok := run.sticky(); ok {
			dims := p.backends[sticky].Dimensions()
			order = append(order, sticky)
			for i, b := range p.backends {
				if i != sticky && b.Dimensions() == dims {
					order = append(order, i)
				}
			}
			return order
		}
	}
	for i := range p.backends {
		order = append(order, i)
	}
	return order
}

func (p *EmbeddingProvider) embedChain(
	ctx context.Context, order []int, texts []string,
) ([]domain.EmbeddingVector, int, error) {
	required := requiredDimensions(ctx)
	var failures []domain.BackendFailure

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return nil, -1, domain.TimeoutError(domain.StageEmbed, err)
		}

		b := p.backends[i]
		if required > 0 && b.Dimensions() != required {
			failures = append(failures, domain.BackendFailure{
				Backend: b.Name(),
				Err:     fmt.Errorf("%w: produces %d, collection has %d", domain.ErrDimensionMismatch, b.Dimensions(), required),
			})
			continue
		}

		vectors, err := p.embedWith(ctx, b, texts)
		if err == nil {
			return vectors, i, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, -1, domain.TimeoutError(domain.StageEmbed, ctxErr)
		}
		failures = append(failures, domain.BackendFailure{Backend: b.Name(), Err: err})
	}

	return nil, -1, &domain.EmbeddingError{Failures: failures}
}

// embedWith embeds all texts with one backend, splitting them into
// sub-batches it accepts. Any failed sub-batch fails the backend.
func (p *EmbeddingProvider) embedWith(
	ctx context.Context, b driven.EmbeddingBackend, texts []string,
) ([]domain.EmbeddingVector, error) {
	size := b.BatchSize()
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}

	out := make([]domain.EmbeddingVector, 0, len(texts))
	for batch := range slices.Chunk(texts, size) {
		values, err := retry(ctx, p.retry, domain.IsTransient, func() ([][]float32, error) {
			return p.attempt(ctx, b, batch)
		})
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			out = append(out, domain.EmbeddingVector{
				Values:     v,
				Model:      b.ModelName(),
				Dimensions: b.Dimensions(),
			})
		}
	}
	return out, nil
}

func (p *EmbeddingProvider) attempt(
	ctx context.Context, b driven.EmbeddingBackend, batch []string,
) ([][]float32, error) {
	start := time.Now()
	values, err := b.EmbedBatch(ctx, batch)
	if err == nil {
		err = checkVectors(b, len(batch), values)
	}

	report(ctx, p.metrics, domain.Event{
		Stage:    domain.StageEmbed,
		Backend:  b.Name(),
		Model:    b.ModelName(),
		Duration: time.Since(start),
		Items:    len(batch),
		Err:      err,
	})

	if err != nil {
		return nil, err
	}
	return values, nil
}

// checkVectors validates a backend response against its declared shape.
func checkVectors(b driven.EmbeddingBackend, want int, values [][]float32) error {
	if len(values) != want {
		return fmt.Errorf("%s returned %d vectors for %d texts", b.Name(), len(values), want)
	}
	dims := b.Dimensions()
	for _, v := range values {
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: %s returned %d dimensions, declared %d",
				domain.ErrDimensionMismatch, b.Name(), len(v), dims)
		}
	}
	return nil
}

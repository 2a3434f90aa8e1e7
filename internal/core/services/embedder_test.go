package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

func newProvider(t *testing.T, sink driven.MetricsSink, backends ...*mockBackend) *EmbeddingProvider {
	t.Helper()
	chain := make([]driven.EmbeddingBackend, len(backends))
	for i, b := range backends {
		chain[i] = b
	}
	p, err := NewEmbeddingProvider(chain, fastRetry, sink)
	require.NoError(t, err)
	return p
}

func TestNewEmbeddingProvider_NoBackends(t *testing.T) {
	p, err := NewEmbeddingProvider(nil, fastRetry, nil)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEmbeddingProvider_EmptyInput(t *testing.T) {
	a := newMockBackend("a", 4)
	p := newProvider(t, nil, a)

	vectors, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, a.callCount())
}

func TestEmbeddingProvider_PrimarySucceeds(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)

	vectors, err := p.Embed(context.Background(), []string{"x", "yy"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, "a-model", vectors[0].Model)
	assert.Equal(t, 4, vectors[0].Dimensions)
	assert.Equal(t, float32(1), vectors[0].Values[0])
	assert.Equal(t, float32(2), vectors[1].Values[0])
	assert.Equal(t, 0, b.callCount())
}

func TestEmbeddingProvider_RateLimitedFallsBackAndSticks(t *testing.T) {
	a := newMockBackend("a", 4)
	a.fail = alwaysFail(fmt.Errorf("a: %w", domain.ErrRateLimited))
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)
	ctx := WithEmbeddingRun(context.Background())

	vectors, err := p.Embed(ctx, []string{"first"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)
	assert.Equal(t, fastRetry.MaxRetries+1, a.callCount(), "transient errors are retried")
	assert.Equal(t, "b", EmbeddingRunFrom(ctx).Backend())

	vectors, err = p.Embed(ctx, []string{"second"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)
	assert.Equal(t, fastRetry.MaxRetries+1, a.callCount(), "sticky backend is tried first")
	assert.Equal(t, 2, b.callCount())
}

func TestEmbeddingProvider_SingleCallScopeWithoutRun(t *testing.T) {
	a := newMockBackend("a", 4)
	a.fail = func(call int, _ []string) error {
		if call == 1 {
			return domain.ErrAuthInvalid
		}
		return nil
	}
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)

	vectors, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)

	vectors, err = p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "a-model", vectors[0].Model, "priority order restarts per call")
}

func TestEmbeddingProvider_PermanentErrorIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"auth", domain.ErrAuthInvalid},
		{"invalid input", domain.ErrInvalidInput},
		{"unclassified", errors.New("weird response")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newMockBackend("a", 4)
			a.fail = alwaysFail(tt.err)
			b := newMockBackend("b", 4)
			p := newProvider(t, nil, a, b)

			_, err := p.Embed(context.Background(), []string{"x"})
			require.NoError(t, err)
			assert.Equal(t, 1, a.callCount())
			assert.Equal(t, 1, b.callCount())
		})
	}
}

func TestEmbeddingProvider_AllBackendsFail(t *testing.T) {
	a := newMockBackend("a", 4)
	a.fail = alwaysFail(domain.ErrBackendUnavailable)
	b := newMockBackend("b", 4)
	b.fail = alwaysFail(domain.ErrAuthInvalid)
	p := newProvider(t, nil, a, b)

	vectors, err := p.Embed(WithEmbeddingRun(context.Background()), []string{"x"})
	assert.Nil(t, vectors)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	var embErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	require.Len(t, embErr.Failures, 2)
	assert.Equal(t, "a", embErr.Failures[0].Backend)
	assert.ErrorIs(t, embErr.Failures[0].Err, domain.ErrBackendUnavailable)
	assert.Equal(t, "b", embErr.Failures[1].Backend)
	assert.ErrorIs(t, embErr.Failures[1].Err, domain.ErrAuthInvalid)
}

func TestEmbeddingProvider_SplitsBatches(t *testing.T) {
	a := newMockBackend("a", 4)
	a.batchSize = 2
	p := newProvider(t, nil, a)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, err := p.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v.Values[0], "vector %d out of order", i)
	}
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, a.batches)
}

func TestEmbeddingProvider_FailedSubBatchFallsBackWholeInput(t *testing.T) {
	a := newMockBackend("a", 4)
	a.batchSize = 2
	a.fail = func(call int, _ []string) error {
		if call == 2 {
			return domain.ErrInvalidInput
		}
		return nil
	}
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, err := p.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for _, v := range vectors {
		assert.Equal(t, "b-model", v.Model)
	}
	assert.Equal(t, [][]string{texts}, b.batches)
}

func TestEmbeddingProvider_DimensionMismatchFallsBack(t *testing.T) {
	a := newMockBackend("a", 4)
	a.outDims = 3
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)

	vectors, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)
	assert.Equal(t, 1, a.callCount(), "dimension mismatch is permanent")
}

func TestEmbeddingProvider_StickyFallbackKeepsDimensionality(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 8)
	c := newMockBackend("c", 4)
	p := newProvider(t, nil, a, b, c)
	ctx := WithEmbeddingRun(context.Background())

	_, err := p.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "a", EmbeddingRunFrom(ctx).Backend())

	a.setFail(alwaysFail(domain.ErrAuthInvalid))
	vectors, err := p.Embed(ctx, []string{"y"})
	require.NoError(t, err)
	assert.Equal(t, "c-model", vectors[0].Model)
	assert.Equal(t, 0, b.callCount())
	assert.Equal(t, "a", EmbeddingRunFrom(ctx).Backend(), "claim is written once")
}

func TestEmbeddingProvider_StickyFailsWithoutCompatibleFallback(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 8)
	p := newProvider(t, nil, a, b)
	ctx := WithEmbeddingRun(context.Background())

	_, err := p.Embed(ctx, []string{"x"})
	require.NoError(t, err)

	a.setFail(alwaysFail(domain.ErrAuthInvalid))
	_, err = p.Embed(ctx, []string{"y"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Equal(t, 0, b.callCount())
}

func TestEmbeddingProvider_LosingConcurrentClaimReembeds(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)
	ctx := WithEmbeddingRun(context.Background())
	run := EmbeddingRunFrom(ctx)

	// Another worker claims b while this call is still on a.
	a.onCall = func() { run.claim(1, "b") }

	vectors, err := p.Embed(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)
	assert.Equal(t, "b", run.Backend())
}

func TestEmbeddingProvider_ConcurrentCallsShareOneBackend(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 4)
	p := newProvider(t, nil, a, b)
	ctx := WithEmbeddingRun(context.Background())

	var wg sync.WaitGroup
	models := make([]string, 16)
	errs := make([]error, 16)
	for i := range models {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectors, err := p.Embed(ctx, []string{"text"})
			errs[i] = err
			if err == nil {
				models[i] = vectors[0].Model
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "a", EmbeddingRunFrom(ctx).Backend())
	for i := range models {
		require.NoError(t, errs[i])
		assert.Equal(t, "a-model", models[i])
	}
	assert.Equal(t, 0, b.callCount())
}

func TestEmbeddingProvider_RequiredDimensions(t *testing.T) {
	a := newMockBackend("a", 4)
	b := newMockBackend("b", 8)
	p := newProvider(t, nil, a, b)

	vectors, err := p.Embed(WithRequiredDimensions(context.Background(), 8), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, "b-model", vectors[0].Model)
	assert.Equal(t, 0, a.callCount())

	_, err = p.Embed(WithRequiredDimensions(context.Background(), 16), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbeddingProvider_CancelledContext(t *testing.T) {
	a := newMockBackend("a", 4)
	p := newProvider(t, nil, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbeddingProvider_ReportsAttempts(t *testing.T) {
	sink := &recordingSink{}
	a := newMockBackend("a", 4)
	a.fail = alwaysFail(domain.ErrAuthInvalid)
	b := newMockBackend("b", 4)
	p := newProvider(t, sink, a, b)

	_, err := p.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)

	events := sink.stage(domain.StageEmbed)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Backend)
	assert.False(t, events[0].Success())
	assert.Equal(t, "b", events[1].Backend)
	assert.Equal(t, "b-model", events[1].Model)
	assert.Equal(t, 2, events[1].Items)
	assert.True(t, events[1].Success())
}

func TestEmbeddingProvider_SinkFailuresAreSwallowed(t *testing.T) {
	for _, sink := range []driven.MetricsSink{failingSink{}, panickingSink{}} {
		p := newProvider(t, sink, newMockBackend("a", 4))

		vectors, err := p.Embed(context.Background(), []string{"x"})
		require.NoError(t, err)
		assert.Len(t, vectors, 1)
	}
}

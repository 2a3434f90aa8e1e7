package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// defaultRetryAfter is the pause after a rate-limit response without a
// Retry-After header.
const defaultRetryAfter = time.Second

// Ensure LimitedBackend implements the interface.
var _ driven.EmbeddingBackend = (*LimitedBackend)(nil)

// LimitedBackend throttles a backend with a token bucket and pauses after
// rate-limit responses.
type LimitedBackend struct {
	driven.EmbeddingBackend

	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// WithRateLimit wraps b so that at most rps requests per second are sent,
// with bursts of up to burst. A non-positive rps returns b unchanged.
func WithRateLimit(b driven.EmbeddingBackend, rps float64, burst int) driven.EmbeddingBackend {
	if rps <= 0 {
		return b
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedBackend{
		EmbeddingBackend: b,
		limiter:          rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// EmbedBatch waits for a token, then delegates.
func (l *LimitedBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	out, err := l.EmbeddingBackend.EmbedBatch(ctx, texts)
	if errors.Is(err, domain.ErrRateLimited) {
		l.backOff(RetryAfter(err))
	}
	return out, err
}

func (l *LimitedBackend) wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

func (l *LimitedBackend) backOff(d time.Duration) {
	if d <= 0 {
		d = defaultRetryAfter
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if at := time.Now().Add(d); at.After(l.retryAt) {
		l.retryAt = at
	}
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// RetryPolicy bounds retries of a single backend or store call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// NewRetryPolicy builds the embedding retry policy from settings.
func NewRetryPolicy(s domain.EmbeddingSettings) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = s.MaxRetries
	if s.RetryInitialInterval > 0 {
		p.InitialInterval = s.RetryInitialInterval
	}
	if s.RetryMaxInterval > 0 {
		p.MaxInterval = s.RetryMaxInterval
	}
	return p
}

// backOff returns a jittered exponential schedule for one retry loop.
func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// retry runs op until it succeeds, returns an error that retryable rejects,
// the attempt budget is spent or ctx is done.
func retry[T any](ctx context.Context, p RetryPolicy, retryable func(error) bool, op func() (T, error)) (T, error) {
	tries := uint(max(p.MaxRetries, 0) + 1)
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(p.backOff()), backoff.WithMaxTries(tries))

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return v, err
}

// isRetryableWrite reports whether a failed record write may succeed on retry.
func isRetryableWrite(err error) bool {
	switch {
	case errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

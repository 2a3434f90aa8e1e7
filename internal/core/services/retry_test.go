package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, func(error) bool { return false }, func() (int, error) {
		calls++
		return 0, domain.ErrAuthInvalid
	})
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, domain.IsTransient, func() (int, error) {
		calls++
		return 0, domain.ErrRateLimited
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, fastRetry.MaxRetries+1, calls)
}

func TestNewRetryPolicy(t *testing.T) {
	p := NewRetryPolicy(domain.DefaultSettings().Embedding)
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, DefaultRetryPolicy().InitialInterval, p.InitialInterval)
}

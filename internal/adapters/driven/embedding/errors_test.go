package embedding

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected error
	}{
		{429, domain.ErrRateLimited},
		{500, domain.ErrBackendUnavailable},
		{502, domain.ErrBackendUnavailable},
		{408, domain.ErrBackendUnavailable},
		{401, domain.ErrAuthInvalid},
		{403, domain.ErrAuthInvalid},
		{404, domain.ErrNotFound},
		{400, domain.ErrInvalidInput},
		{422, domain.ErrInvalidInput},
		{418, nil},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyStatus(tt.code))
		})
	}
}

func TestNewStatusError(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"3"}}}
	err := NewStatusError("openai/x", resp, []byte("  slow down  "))

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3*time.Second, RetryAfter(err))
	assert.Equal(t, "openai/x: API returned status 429: slow down", err.Error())
	assert.Zero(t, RetryAfter(errors.New("other")))
}

func TestTransportError(t *testing.T) {
	err := TransportError("b", errors.New("connection reset"))
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	err = TransportError("b", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("nonsense"))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 50*time.Minute)
}

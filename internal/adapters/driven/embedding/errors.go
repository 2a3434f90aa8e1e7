// Package embedding holds helpers shared by the embedding backend adapters:
// mapping service failures onto domain errors and client-side rate
// limiting.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// StatusError is a non-2xx response from an embedding API.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Unwrap maps the status code onto a domain sentinel.
func (e *StatusError) Unwrap() error {
	return ClassifyStatus(e.StatusCode)
}

// ClassifyStatus maps an HTTP status onto a domain sentinel, or nil for
// statuses without one.
func ClassifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusRequestTimeout || code >= 500:
		return domain.ErrBackendUnavailable
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrAuthInvalid
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge ||
		code == http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	default:
		return nil
	}
}

// NewStatusError builds a StatusError from a response and its body.
func NewStatusError(backend string, resp *http.Response, body []byte) *StatusError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &StatusError{
		Backend:    backend,
		StatusCode: resp.StatusCode,
		Body:       text,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// TransportError wraps a failed request as ErrBackendUnavailable. Context
// errors pass through unchanged.
func TransportError(backend string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", backend, err)
	}
	return fmt.Errorf("%s: %w: %w", backend, domain.ErrBackendUnavailable, err)
}

// RetryAfter returns the server's requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

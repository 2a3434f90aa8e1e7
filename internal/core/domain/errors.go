package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown backend, store or content type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration indicates invalid chunker, backend or store settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrDocumentTooLarge indicates a document produced more chunks than allowed.
	ErrDocumentTooLarge = errors.New("document exceeds chunk limit")

	// Embedding Errors.

	// ErrEmbedding indicates every configured embedding backend failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrRateLimited indicates the backend rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrBackendUnavailable indicates a backend is temporarily unreachable
	// or returned a server-side failure.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrAuthInvalid indicates the backend rejected the credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// dimensionality of its backend or collection.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// Storage and Retrieval Errors.

	// ErrStore indicates a vector store operation failed.
	ErrStore = errors.New("vector store error")

	// ErrRetrieval indicates a query could not be answered.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrTimeout indicates a pipeline deadline expired or the run was cancelled.
	ErrTimeout = errors.New("timeout")
)

// ConfigurationError reports an invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// BackendFailure records why a single embedding backend failed.
type BackendFailure struct {
	Backend string
	Err     error
}

// EmbeddingError is returned when every backend in the chain failed.
type EmbeddingError struct {
	Failures []BackendFailure
}

func (e *EmbeddingError) Error() string {
	if len(e.Failures) == 0 {
		return "embedding failed: no backends configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Backend, f.Err))
	}
	return "embedding failed: all backends failed (" + strings.Join(parts, "; ") + ")"
}

// Is matches ErrEmbedding.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// Unwrap exposes each backend's error to errors.Is and errors.As.
func (e *EmbeddingError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// StoreError wraps a vector store failure with the operation and record involved.
type StoreError struct {
	Op       string
	RecordID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("vector store %s %s: %v", e.Op, e.RecordID, e.Err)
	}
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// RetrievalError is returned when a question could not be turned into hits.
type RetrievalError struct {
	Question string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

// Is matches ErrRetrieval.
func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrieval
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError. A nil err yields nil.
func NewStoreError(op, recordID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, RecordID: recordID, Err: err}
}

// IsTransient reports whether err is worth retrying against the same backend
// or store: rate limits, temporary unavailability and per-request timeouts.
// Cancellation of the caller's context is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBackendUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// TimeoutError wraps a context error so that it matches ErrTimeout.
func TimeoutError(stage string, ctxErr error) error {
	return fmt.Errorf("%w: %s: %w", ErrTimeout, stage, ctxErr)
}

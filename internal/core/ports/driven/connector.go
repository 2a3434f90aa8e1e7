package driven

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// DocumentSource fetches raw documents from a location.
// Each source type (filesystem, s3) implements this interface.
type DocumentSource interface {
	// Type returns the source type identifier.
	Type() string

	// Validate checks the source is reachable and readable.
	Validate(ctx context.Context) error

	// FullSync fetches all documents from the source.
	// Both channels are closed when the sync ends.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Close releases resources.
	Close() error
}

// WatchableSource pushes changes as they happen.
type WatchableSource interface {
	DocumentSource

	// Watch listens for real-time changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)
}

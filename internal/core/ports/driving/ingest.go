package driving

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// IngestionService chunks, embeds and indexes documents.
type IngestionService interface {
	// Ingest runs a document through the pipeline. A Failed result is
	// returned together with its error; a partial result has a nil error.
	Ingest(ctx context.Context, doc domain.Document) (*domain.IngestionResult, error)

	// IngestRaw normalises raw bytes into a document and ingests it.
	IngestRaw(ctx context.Context, raw domain.RawDocument) (*domain.IngestionResult, error)

	// Remove deletes every record of a document and returns how many were removed.
	Remove(ctx context.Context, documentID string) (int, error)
}

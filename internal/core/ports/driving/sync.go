package driving

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// ChangeHandler observes each change applied during a watch. Result is nil
// for deletions.
type ChangeHandler func(change domain.RawDocumentChange, result *domain.IngestionResult, err error)

// SyncOrchestrator feeds document sources through ingestion.
type SyncOrchestrator interface {
	// Sync ingests every document the source yields. Per-document failures
	// are collected in the report; the error is reserved for failures of
	// the source itself.
	Sync(ctx context.Context, source driven.DocumentSource) (*domain.SyncReport, error)

	// Watch applies changes until ctx is cancelled: created and updated
	// documents are re-ingested, deleted documents are removed.
	Watch(ctx context.Context, source driven.WatchableSource, onChange ChangeHandler) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator coordinates document synchronisation.
type SyncOrchestrator struct {
	ingest driving.IngestionService
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(ingest driving.IngestionService) *SyncOrchestrator {
	return &SyncOrchestrator{ingest: ingest}
}

// Sync ingests every document from the source, one at a time.
func (o *SyncOrchestrator) Sync(ctx context.Context, source driven.DocumentSource) (*domain.SyncReport, error) {
	started := time.Now()
	report := &domain.SyncReport{Source: source.Type()}
	defer func() { report.Duration = time.Since(started) }()

	if err := source.Validate(ctx); err != nil {
		return report, fmt.Errorf("validate %s source: %w", source.Type(), err)
	}

	docs, errs := source.FullSync(ctx)
	for docs != nil || errs != nil {
		select {
		case <-ctx.Done():
			return report, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			report.Errors = append(report.Errors, err)

		case raw, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			report.Documents++
			result, err := o.ingest.IngestRaw(ctx, raw)
			o.tally(report, raw, result, err)
		}
	}
	return report, nil
}

func (o *SyncOrchestrator) tally(report *domain.SyncReport, raw domain.RawDocument, result *domain.IngestionResult, err error) {
	if result != nil {
		report.Chunks += result.ChunksIndexed
	}
	switch {
	case err != nil:
		report.Failed++
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", raw.URI, err))
	case result != nil && result.Partial():
		report.Indexed++
		report.Partial++
	default:
		report.Indexed++
	}
}

// Watch applies changes from the source until ctx is cancelled.
func (o *SyncOrchestrator) Watch(ctx context.Context, source driven.WatchableSource, onChange driving.ChangeHandler) error {
	changes, err := source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s source: %w", source.Type(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			result, err := o.apply(ctx, change)
			if onChange != nil {
				onChange(change, result, err)
			}
		}
	}
}

func (o *SyncOrchestrator) apply(ctx context.Context, change domain.RawDocumentChange) (*domain.IngestionResult, error) {
	if change.Type == domain.ChangeDeleted {
		_, err := o.ingest.Remove(ctx, change.Document.DocumentID())
		if errors.Is(err, domain.ErrNotFound) {
			err = nil
		}
		return nil, err
	}
	return o.ingest.IngestRaw(ctx, change.Document)
}

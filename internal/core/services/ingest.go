package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestConfig holds the ingestion pipeline limits.
type IngestConfig struct {
	// BatchSize is the number of chunks per embedding call.
	BatchSize int

	// Concurrency bounds in-flight embedding batches.
	Concurrency int

	// MaxChunks caps chunks per document. Zero disables the cap.
	MaxChunks int

	// Timeout bounds one document. Zero disables it.
	Timeout time.Duration

	// Write is the retry policy for record writes.
	Write RetryPolicy
}

// NewIngestConfig builds the pipeline config from settings.
func NewIngestConfig(s domain.Settings) IngestConfig {
	write := NewRetryPolicy(s.Embedding)
	write.MaxRetries = s.Ingest.WriteAttempts - 1
	return IngestConfig{
		BatchSize:   s.Ingest.BatchSize,
		Concurrency: s.Ingest.Concurrency,
		MaxChunks:   s.Chunker.MaxChunks,
		Timeout:     s.Ingest.Timeout,
		Write:       write,
	}
}

// IngestionService runs documents through
// Received → Chunked → Embedded → Indexed → Complete.
type IngestionService struct {
	chunker     driven.Chunker
	embedder    Embedder
	store       driven.VectorStore
	normalisers driven.NormaliserRegistry
	metrics     driven.MetricsSink
	cfg         IngestConfig
}

// NewIngestionService creates a new ingestion service.
// The normalisers and metrics parameters are optional (can be nil).
func NewIngestionService(
	chunker driven.Chunker,
	embedder Embedder,
	store driven.VectorStore,
	normalisers driven.NormaliserRegistry,
	metrics driven.MetricsSink,
	cfg IngestConfig,
) *IngestionService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &IngestionService{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		normalisers: normalisers,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// Ingest chunks, embeds and indexes a document, replacing any prior version.
//
// Nothing is written when chunking fails or when no chunk could be embedded.
// Chunks that fail to embed or write are listed in FailedChunkIndices and
// the result is still Complete (see IngestionResult.Partial).
func (s *IngestionService) Ingest(ctx context.Context, doc domain.Document) (*domain.IngestionResult, error) {
	started := time.Now()
	result := &domain.IngestionResult{DocumentID: doc.ID, State: domain.StateReceived}
	defer func() {
		result.Duration = time.Since(started)
		report(ctx, s.metrics, domain.Event{
			Stage:    domain.StageIngest,
			Backend:  result.Backend,
			Duration: result.Duration,
			Items:    result.ChunksIndexed,
			Err:      result.Err,
		})
	}()

	if doc.ID == "" {
		return s.fail(ctx, result, domain.StateReceived, fmt.Errorf("document id is empty: %w", domain.ErrInvalidInput))
	}

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	chunks, err := s.chunk(runCtx, doc)
	if err != nil {
		return s.fail(runCtx, result, domain.StateChunked, err)
	}
	result.Advance(domain.StateChunked)
	result.ChunksTotal = len(chunks)

	if len(chunks) == 0 {
		// Empty content still supersedes the prior version.
		removed, err := s.delete(runCtx, doc.ID)
		if err != nil {
			return s.fail(runCtx, result, domain.StateIndexed, err)
		}
		result.ChunksReplaced = removed
		result.Advance(domain.StateComplete)
		return result, nil
	}

	runCtx = WithRequiredDimensions(WithEmbeddingRun(runCtx), s.store.Dimensions())
	vectors, embedFailed, err := s.embed(runCtx, chunks)
	result.Backend = EmbeddingRunFrom(runCtx).Backend()
	if err != nil {
		result.FailedChunkIndices = embedFailed
		return s.fail(runCtx, result, domain.StateEmbedded, err)
	}
	result.Advance(domain.StateEmbedded)

	removed, err := s.delete(runCtx, doc.ID)
	if err != nil {
		return s.fail(runCtx, result, domain.StateIndexed, err)
	}
	result.ChunksReplaced = removed

	records := make([]domain.IndexRecord, 0, len(chunks))
	for _, c := range chunks {
		if v := vectors[c.Index]; v != nil {
			records = append(records, domain.NewIndexRecord(c, *v))
		}
	}

	written, writeFailed, err := s.write(runCtx, records)
	result.ChunksIndexed = written
	result.FailedChunkIndices = mergeIndices(embedFailed, writeFailed)
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return s.fail(runCtx, result, domain.StateIndexed, domain.TimeoutError(domain.StageIndex, ctxErr))
	}
	if written == 0 {
		return s.fail(runCtx, result, domain.StateIndexed, err)
	}

	result.Advance(domain.StateIndexed)
	result.Advance(domain.StateComplete)
	return result, nil
}

// IngestRaw normalises a raw document and ingests it.
func (s *IngestionService) IngestRaw(ctx context.Context, raw domain.RawDocument) (*domain.IngestionResult, error) {
	result := &domain.IngestionResult{DocumentID: raw.DocumentID(), State: domain.StateReceived}
	if s.normalisers == nil {
		return s.fail(ctx, result, domain.StateReceived, fmt.Errorf("no normalisers configured: %w", domain.ErrUnsupportedType))
	}

	doc, err := s.normalisers.Normalise(ctx, &raw)
	if err != nil {
		return s.fail(ctx, result, domain.StateReceived, fmt.Errorf("normalise %s: %w", raw.URI, err))
	}
	doc.ID = raw.DocumentID()
	return s.Ingest(ctx, *doc)
}

// Remove deletes every record of a document.
func (s *IngestionService) Remove(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document id is empty: %w", domain.ErrInvalidInput)
	}
	return s.delete(ctx, documentID)
}

func (s *IngestionService) fail(
	ctx context.Context, result *domain.IngestionResult, stage domain.IngestState, err error,
) (*domain.IngestionResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, domain.ErrTimeout) {
		err = domain.TimeoutError(stage.String(), ctxErr)
	}
	result.Fail(stage, err)
	return result, err
}

func (s *IngestionService) chunk(ctx context.Context, doc domain.Document) ([]domain.Chunk, error) {
	start := time.Now()
	var chunks []domain.Chunk
	var err error

	for c := range s.chunker.Chunks(doc) {
		if err = ctx.Err(); err != nil {
			break
		}
		if s.cfg.MaxChunks > 0 && len(chunks) == s.cfg.MaxChunks {
			err = fmt.Errorf("%w: more than %d chunks", domain.ErrDocumentTooLarge, s.cfg.MaxChunks)
			break
		}
		chunks = append(chunks, c)
	}

	report(ctx, s.metrics, domain.Event{
		Stage:    domain.StageChunk,
		Backend:  s.chunker.Name(),
		Duration: time.Since(start),
		Items:    len(chunks),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// embed embeds chunks in batches on a bounded worker pool. It returns one
// vector slot per chunk index, nil for failed chunks, and the failed
// indices. An error is returned only when nothing was embedded or the run
// timed out.
func (s *IngestionService) embed(
	ctx context.Context, chunks []domain.Chunk,
) ([]*domain.EmbeddingVector, []int, error) {
	vectors := make([]*domain.EmbeddingVector, len(chunks))

	var (
		mu      sync.Mutex
		failed  []int
		lastErr error
	)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for batch := range slices.Chunk(chunks, s.cfg.BatchSize) {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			got, err := s.embedder.Embed(ctx, texts)
			if err == nil && len(got) != len(batch) {
				err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(got), len(batch))
			}
			if err != nil {
				mu.Lock()
				for _, c := range batch {
					failed = append(failed, c.Index)
				}
				lastErr = err
				mu.Unlock()
				return nil
			}

			for i, c := range batch {
				vectors[c.Index] = &got[i]
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(failed)
	if err := ctx.Err(); err != nil {
		return nil, failed, domain.TimeoutError(domain.StageEmbed, err)
	}
	if len(failed) == len(chunks) {
		return nil, failed, lastErr
	}
	return vectors, failed, nil
}

func (s *IngestionService) delete(ctx context.Context, documentID string) (int, error) {
	start := time.Now()
	removed, err := s.store.DeleteByDocument(ctx, documentID)
	report(ctx, s.metrics, domain.Event{
		Stage:    domain.StageDelete,
		Duration: time.Since(start),
		Items:    removed,
		Err:      err,
	})
	return removed, err
}

// write upserts records in chunk-index order, retrying failed records with
// backoff. It returns how many were written and the chunk indices that
// could not be.
func (s *IngestionService) write(ctx context.Context, records []domain.IndexRecord) (int, []int, error) {
	pending := records
	written := 0
	var failed []int
	var lastErr error

	_, err := retry(ctx, s.cfg.Write, isRetryableWrite, func() (struct{}, error) {
		start := time.Now()
		outcomes := s.store.UpsertBatch(ctx, pending)

		var again []domain.IndexRecord
		var retryErr error
		for i, r := range pending {
			var err error
			if i < len(outcomes) {
				err = outcomes[i].Err
			} else {
				err = domain.NewStoreError("upsert", r.ID, errors.New("no outcome reported"))
			}

			switch {
			case err == nil:
				written++
			case isRetryableWrite(err):
				again = append(again, r)
				retryErr = err
			default:
				failed = append(failed, r.ChunkIndex)
				lastErr = err
			}
		}

		report(ctx, s.metrics, domain.Event{
			Stage:    domain.StageIndex,
			Duration: time.Since(start),
			Items:    len(pending) - len(again),
			Err:      retryErr,
		})

		pending = again
		return struct{}{}, retryErr
	})

	for _, r := range pending {
		failed = append(failed, r.ChunkIndex)
	}
	if err != nil {
		lastErr = err
	}
	slices.Sort(failed)
	return written, failed, lastErr
}

// mergeIndices returns the sorted union of two sorted index lists.
func mergeIndices(a, b []int) []int {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

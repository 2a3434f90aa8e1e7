package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService retrieves ranked context for questions.
type QueryService struct {
	embedder Embedder
	store    driven.VectorStore
	metrics  driven.MetricsSink
	cfg      domain.QuerySettings
}

// NewQueryService creates a new query service.
// The metrics parameter is optional (can be nil).
func NewQueryService(
	embedder Embedder,
	store driven.VectorStore,
	metrics driven.MetricsSink,
	cfg domain.QuerySettings,
) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.DedupOverlapRatio <= 0 {
		cfg.DedupOverlapRatio = 0.5
	}
	return &QueryService{
		embedder: embedder,
		store:    store,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// AnswerContext embeds the question, queries the store and assembles a
// deduplicated bundle ranked by descending score.
//
// A blank question, an empty index or no hit above the floor yield an empty
// bundle and a nil error. Embedding and store failures are returned as a
// *domain.RetrievalError.
func (s *QueryService) AnswerContext(
	ctx context.Context, question string, opts domain.QueryOptions,
) (*domain.ContextBundle, error) {
	bundle := &domain.ContextBundle{Question: question}
	if strings.TrimSpace(question) == "" {
		return bundle, nil
	}

	if opts.TopK <= 0 {
		opts.TopK = s.cfg.TopK
	}
	if opts.MinScore == nil {
		opts.MinScore = s.cfg.MinScore
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	hits, err := s.retrieve(ctx, question, opts)
	report(ctx, s.metrics, domain.Event{
		Stage:    domain.StageQuery,
		Duration: time.Since(start),
		Items:    len(hits),
		Err:      err,
	})
	if err != nil {
		return nil, &domain.RetrievalError{Question: question, Err: err}
	}

	hits = Deduplicate(hits, s.cfg.DedupOverlapRatio)
	bundle.Hits, bundle.Truncated = Truncate(hits, s.cfg.MaxContextChars)
	for i := range bundle.Hits {
		bundle.Hits[i].Rank = i + 1
	}
	return bundle, nil
}

func (s *QueryService) retrieve(
	ctx context.Context, question string, opts domain.QueryOptions,
) ([]domain.RetrievalHit, error) {
	embedCtx := domain.WithEmbeddingPurpose(WithRequiredDimensions(ctx, s.store.Dimensions()), domain.PurposeQuery)
	vectors, err := s.embedder.Embed(embedCtx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}

	hits, err := s.store.Query(ctx, vectors[0].Values, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.TimeoutError(domain.StageQuery, ctxErr)
		}
		return nil, err
	}

	hits = slices.DeleteFunc(hits, func(h domain.RetrievalHit) bool {
		return !opts.Admits(h.Score)
	})
	SortHits(hits)
	if len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// SortHits orders hits by descending score, ties by ascending record ID.
func SortHits(hits []domain.RetrievalHit) {
	slices.SortStableFunc(hits, func(a, b domain.RetrievalHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Record.ID, b.Record.ID)
	})
}

// Deduplicate drops hits that repeat a higher-scoring hit: the same record,
// or a span of the same document overlapping it by at least ratio of the
// shorter span. The result keeps score order.
func Deduplicate(hits []domain.RetrievalHit, ratio float64) []domain.RetrievalHit {
	sorted := slices.Clone(hits)
	SortHits(sorted)

	kept := make([]domain.RetrievalHit, 0, len(sorted))
	for _, h := range sorted {
		if !slices.ContainsFunc(kept, func(k domain.RetrievalHit) bool { return duplicates(k, h, ratio) }) {
			kept = append(kept, h)
		}
	}
	return kept
}

func duplicates(a, b domain.RetrievalHit, ratio float64) bool {
	if a.Record.ID == b.Record.ID {
		return true
	}
	if a.Record.DocumentID != b.Record.DocumentID {
		return false
	}
	overlap := min(a.Record.End, b.Record.End) - max(a.Record.Start, b.Record.Start)
	if overlap <= 0 {
		return false
	}
	shorter := min(a.Record.End-a.Record.Start, b.Record.End-b.Record.Start)
	return float64(overlap) >= ratio*float64(shorter)
}

// Truncate keeps the longest score-ordered prefix of hits whose combined
// text fits maxChars, dropping the lowest-scoring hits first. The top hit
// is always kept, even when it alone exceeds the limit. Zero disables the
// limit.
func Truncate(hits []domain.RetrievalHit, maxChars int) ([]domain.RetrievalHit, bool) {
	if maxChars <= 0 {
		return hits, false
	}
	total := 0
	for i, h := range hits {
		total += len(h.Record.Text)
		if total > maxChars && i > 0 {
			return hits[:i], true
		}
	}
	return hits, false
}

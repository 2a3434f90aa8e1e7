// Package memory provides an in-process vector store with brute-force
// cosine search. Contents are lost when the process exits.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is an in-memory implementation of driven.VectorStore.
type Store struct {
	name string
	dims *storage.DimensionGuard

	mu      sync.RWMutex
	records map[string]domain.IndexRecord
}

// New creates an empty store. A zero dims lets the first record fix it.
func New(name string, dims int) *Store {
	return &Store{
		name:    name,
		dims:    storage.NewDimensionGuard(dims),
		records: make(map[string]domain.IndexRecord),
	}
}

// Upsert stores or replaces a record.
func (s *Store) Upsert(_ context.Context, r domain.IndexRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return domain.NewStoreError("upsert", r.ID, err)
	}
	if _, err := s.dims.Check(len(r.Vector)); err != nil {
		return domain.NewStoreError("upsert", r.ID, err)
	}

	r.Vector = slices.Clone(r.Vector)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return nil
}

// UpsertBatch stores each record independently.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome {
	out := make([]domain.UpsertOutcome, len(records))
	for i, r := range records {
		out[i] = domain.UpsertOutcome{RecordID: r.ID, Err: s.Upsert(ctx, r)}
	}
	return out
}

// Query scores every record against vector.
func (s *Store) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error) {
	if dims := s.dims.Dimensions(); dims != 0 && len(vector) != dims {
		return nil, domain.NewStoreError("query", "", storage.DimensionError(len(vector), dims))
	}

	s.mu.RLock()
	hits := make([]domain.RetrievalHit, 0, len(s.records))
	for _, r := range s.records {
		if err := ctx.Err(); err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		hits = append(hits, domain.RetrievalHit{Record: r, Score: storage.Cosine(vector, r.Vector)})
	}
	s.mu.RUnlock()

	return storage.Rank(hits, opts), nil
}

// DeleteByDocument removes every record of a document.
func (s *Store) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Dimensions returns the collection dimensionality, 0 while unfixed.
func (s *Store) Dimensions() int {
	return s.dims.Dimensions()
}

// Stats counts records and documents.
func (s *Store) Stats(_ context.Context) (domain.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]struct{})
	for _, r := range s.records {
		docs[r.DocumentID] = struct{}{}
	}
	return domain.CollectionStats{
		Name:       s.name,
		Records:    len(s.records),
		Documents:  len(docs),
		Dimensions: s.dims.Dimensions(),
	}, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

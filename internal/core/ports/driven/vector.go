package driven

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// VectorStore persists index records and answers similarity queries.
// Every record in a collection has the collection's dimensionality.
type VectorStore interface {
	// Upsert inserts or replaces a record by ID. A vector whose length differs
	// from the collection dimensionality fails with a *domain.StoreError
	// wrapping domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, record domain.IndexRecord) error

	// UpsertBatch writes each record independently and reports one outcome
	// per record, in input order. One bad record never aborts the batch.
	UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome

	// Query returns at most opts.Limit() records ordered by descending
	// cosine similarity, ties broken by ascending record ID, none scoring
	// below opts.MinScore. A TopK of zero or less means domain.DefaultTopK.
	// An empty result is not an error.
	Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error)

	// DeleteByDocument removes every record of a document and returns how
	// many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Dimensions returns the collection dimensionality, zero if not yet established.
	Dimensions() int

	// Stats describes the collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

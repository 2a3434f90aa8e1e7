package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func record(doc string, idx int, vec ...float32) domain.IndexRecord {
	return domain.IndexRecord{
		ID:         domain.RecordID(doc, idx),
		DocumentID: doc,
		ChunkIndex: idx,
		Text:       fmt.Sprintf("%s chunk %d", doc, idx),
		Vector:     vec,
	}
}

func TestStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 0)

	require.NoError(t, s.Upsert(ctx, record("a", 0, 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("a", 1, 0.7, 0.7)))
	require.NoError(t, s.Upsert(ctx, record("b", 0, 0, 1)))
	assert.Equal(t, 2, s.Dimensions())

	hits, err := s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a_0", hits[0].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, "a_1", hits[1].Record.ID)
	assert.Equal(t, "a chunk 1", hits[1].Record.Text)
}

func TestStore_QueryMinScore(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)
	require.NoError(t, s.Upsert(ctx, record("a", 0, 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("b", 0, 0, 1)))

	hits, err := s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 5, MinScore: domain.Float64(0.5)})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a_0", hits[0].Record.ID)
}

func TestStore_QueryTiesByID(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)
	require.NoError(t, s.Upsert(ctx, record("z", 0, 1, 1)))
	require.NoError(t, s.Upsert(ctx, record("m", 0, 1, 1)))

	hits, err := s.Query(ctx, []float32{1, 1}, domain.QueryOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "m_0", hits[0].Record.ID)
	assert.Equal(t, "z_0", hits[1].Record.ID)
}

func TestStore_QueryEmpty(t *testing.T) {
	hits, err := New("docs", 0).Query(context.Background(), []float32{1, 0}, domain.QueryOptions{TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 3)

	err := s.Upsert(ctx, record("a", 0, 1, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrStore)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "a_0", storeErr.RecordID)

	_, err = s.Query(ctx, []float32{1}, domain.QueryOptions{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_UpsertBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)

	outcomes := s.UpsertBatch(ctx, []domain.IndexRecord{
		record("a", 0, 1, 0),
		record("a", 1, 1, 0, 0),
		{ID: "", DocumentID: "a", Vector: []float32{1, 0}},
		record("a", 3, 0, 1),
	})
	require.Len(t, outcomes, 4)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, outcomes[2].Err, domain.ErrInvalidInput)
	assert.NoError(t, outcomes[3].Err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)
	r := record("a", 0, 1, 0)
	require.NoError(t, s.Upsert(ctx, r))
	r.Text = "updated"
	require.NoError(t, s.Upsert(ctx, r))

	hits, err := s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated", hits[0].Record.Text)
}

func TestStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)
	require.NoError(t, s.Upsert(ctx, record("a", 0, 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("a", 1, 1, 0)))
	require.NoError(t, s.Upsert(ctx, record("b", 0, 1, 0)))

	n, err := s.DeleteByDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteByDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStats{Name: "docs", Records: 1, Documents: 1, Dimensions: 2}, stats)
}

func TestStore_CopiesVectors(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)
	r := record("a", 0, 1, 0)
	require.NoError(t, s.Upsert(ctx, r))
	r.Vector[0] = -1

	hits, err := s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New("docs", 2)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, record("doc", i, 1, float32(i))))
			_, err := s.Query(ctx, []float32{1, 1}, domain.QueryOptions{TopK: 3})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Records)
}

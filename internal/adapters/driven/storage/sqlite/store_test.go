package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func newTestStore(t *testing.T, collection string, dims int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(context.Background(), path, collection, dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func record(doc string, idx int, vec ...float32) domain.IndexRecord {
	return domain.IndexRecord{
		ID:         domain.RecordID(doc, idx),
		DocumentID: doc,
		ChunkIndex: idx,
		Text:       fmt.Sprintf("%s chunk %d", doc, idx),
		Start:      idx * 10,
		End:        idx*10 + 10,
		Vector:     vec,
	}
}

func TestNewStore_CreatesSchema(t *testing.T) {
	s, path := newTestStore(t, "docs", 0)
	assert.Equal(t, path, s.Path())
	assert.Equal(t, 0, s.Dimensions())

	var version int
	require.NoError(t, s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	require.NoError(t, s.Ping(context.Background()))
}

func TestStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "docs", 0)

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
	assert.Equal(t, 10, hits[1].Record.Start)
	assert.Equal(t, 20, hits[1].Record.End)
	assert.Equal(t, []float32{0.7, 0.7}, hits[1].Record.Vector)
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "docs", 2)

	r := record("a", 0, 1, 0)
	require.NoError(t, s.Upsert(ctx, r))
	r.Text = "rewritten"
	require.NoError(t, s.Upsert(ctx, r))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)

	hits, err := s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rewritten", hits[0].Record.Text)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "docs", 3)

	err := s.Upsert(ctx, record("a", 0, 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "a_0", storeErr.RecordID)

	_, err = s.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_InvalidRecord(t *testing.T) {
	s, _ := newTestStore(t, "docs", 0)
	err := s.Upsert(context.Background(), domain.IndexRecord{ID: "x", DocumentID: "d"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, s.Dimensions())
}

func TestStore_DimensionsPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewStore(ctx, path, "docs", 0)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, record("a", 0, 1, 0, 0)))
	require.NoError(t, s.Close())

	reopened, err := NewStore(ctx, path, "docs", 0)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.Dimensions())

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)

	_, err = NewStore(ctx, path, "docs", 4)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := NewStore(ctx, path, "alpha", 2)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(ctx, path, "beta", 3)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Upsert(ctx, record("doc", 0, 1, 0)))
	require.NoError(t, b.Upsert(ctx, record("doc", 0, 1, 0, 0)))

	hits, err := a.Query(ctx, []float32{1, 0}, domain.QueryOptions{TopK: 5})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	removed, err := b.DeleteByDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, "alpha", stats.Name)
}

func TestStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "docs", 2)

	outcomes := s.UpsertBatch(ctx, []domain.IndexRecord{
		record("a", 0, 1, 0),
		record("a", 1, 0, 1),
		record("b", 0, 1, 1),
		record("c", 0, 1, 0, 1),
	})
	require.Len(t, outcomes, 4)
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.ErrorIs(t, outcomes[3].Err, domain.ErrDimensionMismatch)
	assert.Equal(t, "c_0", outcomes[3].RecordID)

	removed, err := s.DeleteByDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.DeleteByDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.Dimensions)
}

func TestStore_QueryEmpty(t *testing.T) {
	s, _ := newTestStore(t, "docs", 0)
	hits, err := s.Query(context.Background(), []float32{1, 0}, domain.QueryOptions{TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFloat32BlobRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Len(t, float32SliceToBytes(in), 16)
}

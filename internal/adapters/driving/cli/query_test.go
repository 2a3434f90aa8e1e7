package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func testBundle() *domain.ContextBundle {
	return &domain.ContextBundle{
		Question: "how are vectors stored",
		Hits: []domain.RetrievalHit{
			{
				Record: domain.IndexRecord{ID: "store.md_0", DocumentID: "store.md", ChunkIndex: 0, Text: "Vectors are stored as float32 blobs.", End: 36},
				Score:  0.87,
				Rank:   1,
			},
			{
				Record: domain.IndexRecord{ID: "intro.md_3", DocumentID: "intro.md", ChunkIndex: 3, Text: "The index keeps one record per chunk."},
				Score:  0.61,
				Rank:   2,
			},
		},
	}
}

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query <question>", queryCmd.Use)
}

func TestQueryCmd_Flags(t *testing.T) {
	flag := queryCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, queryCmd.Flags().Lookup("min-score"))
	require.NotNil(t, queryCmd.Flags().Lookup("json"))
}

func TestQueryCmd_RendersPassages(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.query.bundle = testBundle()

	out, err := execute(t, "query", "how", "are", "vectors", "stored")

	require.NoError(t, err)
	assert.Equal(t, "how are vectors stored", ts.query.question)
	assert.Equal(t, 0, ts.query.opts.TopK)
	assert.Nil(t, ts.query.opts.MinScore)

	assert.Contains(t, out, "Context for: how are vectors stored")
	assert.Contains(t, out, "[1] store.md#0")
	assert.Contains(t, out, "(0.870)")
	assert.Contains(t, out, "Vectors are stored as float32 blobs.")
	assert.Less(t, strings.Index(out, "store.md"), strings.Index(out, "intro.md"))
}

func TestQueryCmd_PassesOptions(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()

	_, err := execute(t, "query", "-k", "3", "--min-score", "0.25", "question")

	require.NoError(t, err)
	assert.Equal(t, 3, ts.query.opts.TopK)
	require.NotNil(t, ts.query.opts.MinScore)
	assert.Equal(t, 0.25, *ts.query.opts.MinScore)
}

func TestQueryCmd_ZeroMinScoreIsExplicit(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()

	_, err := execute(t, "query", "--min-score", "0", "question")

	require.NoError(t, err)
	require.NotNil(t, ts.query.opts.MinScore)
	assert.Equal(t, 0.0, *ts.query.opts.MinScore)
}

func TestQueryCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "query", "nothing matches")

	require.NoError(t, err)
	assert.Contains(t, out, "No relevant passages found.")
}

func TestQueryCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.query.bundle = testBundle()

	out, err := execute(t, "query", "--json", "how are vectors stored")
	require.NoError(t, err)

	var got bundleJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "how are vectors stored", got.Question)
	require.Len(t, got.Passages, 2)
	assert.Equal(t, passageJSON{
		Rank: 1, DocumentID: "store.md", ChunkIndex: 0, Start: 0, End: 36,
		Score: 0.87, Text: "Vectors are stored as float32 blobs.",
	}, got.Passages[0])
}

func TestQueryCmd_NegativeTopK(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "query", "-k", "-1", "question")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.query.err = errors.New("all embedding backends failed")

	_, err := execute(t, "query", "question")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed: all embedding backends failed")
}

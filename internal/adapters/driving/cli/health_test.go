package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

func TestHealthCmd_AllHealthy(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.health.statuses = []driving.ComponentStatus{
		{Name: "bedrock/amazon.titan-embed-text-v1", Kind: "embedding", Latency: 80 * time.Millisecond},
		{Name: "documents", Kind: "store", Latency: time.Millisecond},
	}

	out, err := execute(t, "health")

	require.NoError(t, err)
	assert.Contains(t, out, "Health")
	assert.Contains(t, out, "bedrock/amazon.titan-embed-text-v1")
	assert.Contains(t, out, "80ms")
}

func TestHealthCmd_Unhealthy(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.health.statuses = []driving.ComponentStatus{
		{Name: "titan-v1", Kind: "embedding", Err: errors.New("access denied")},
		{Name: "documents", Kind: "store"},
	}

	out, err := execute(t, "health")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 components unhealthy")
	assert.Contains(t, out, "access denied")
}

func TestCollectionStatsCmd(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.health.stats = domain.CollectionStats{Name: "documents", Records: 42, Documents: 5, Dimensions: 1536}

	out, err := execute(t, "collection", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Collection documents")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1536")
}

func TestCollectionStatsCmd_EmptyCollection(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.health.stats = domain.CollectionStats{Name: "documents"}

	out, err := execute(t, "collection", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "not established")
}

func TestCollectionStatsCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServicesWith(nil)
	defer cleanup()
	ts.health.err = domain.ErrBackendUnavailable

	_, err := execute(t, "collection", "stats")

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCollectionResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns collection stats", func(t *testing.T) {
		health := &mockHealthService{
			stats: domain.CollectionStats{Name: "documents", Records: 12, Documents: 3, Dimensions: 1536},
		}
		server, err := NewServer(&Ports{Query: &mockQueryService{}, Health: health})
		require.NoError(t, err)

		result, err := server.handleCollectionResource(ctx, makeReadResourceRequest("kb://collection"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "kb://collection", result.Contents[0].URI)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var info collectionInfo
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &info))
		assert.Equal(t, collectionInfo{Name: "documents", Records: 12, Documents: 3, Dimensions: 1536}, info)
	})

	t.Run("returns error when stats fail", func(t *testing.T) {
		health := &mockHealthService{err: domain.ErrBackendUnavailable}
		server, err := NewServer(&Ports{Query: &mockQueryService{}, Health: health})
		require.NoError(t, err)

		_, err = server.handleCollectionResource(ctx, makeReadResourceRequest("kb://collection"))

		assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	})
}

func TestServer_handleHealthResource(t *testing.T) {
	health := &mockHealthService{
		statuses: []driving.ComponentStatus{
			{Name: "titan-v1", Kind: "embedding", Latency: 120 * time.Millisecond},
			{Name: "sqlite", Kind: "store", Err: errors.New("database is locked")},
		},
	}
	server, err := NewServer(&Ports{Query: &mockQueryService{}, Health: health})
	require.NoError(t, err)

	result, err := server.handleHealthResource(context.Background(), makeReadResourceRequest("kb://health"))
	require.NoError(t, err)

	var infos []componentInfo
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, componentInfo{Name: "titan-v1", Kind: "embedding", Healthy: true, LatencyMS: 120}, infos[0])
	assert.False(t, infos[1].Healthy)
	assert.Equal(t, "database is locked", infos[1].Error)
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "kb://"

// registerResources registers the collection and health resources when a
// health service is available.
func (s *Server) registerResources() {
	if s.ports.Health == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collection",
		Name:        "collection",
		Description: "Record count and dimensionality of the active collection",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "health",
		Name:        "health",
		Description: "Reachability of each embedding backend and the vector store",
		MIMEType:    "application/json",
	}, s.handleHealthResource)
}

type collectionInfo struct {
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Documents  int    `json:"documents"`
	Dimensions int    `json:"dimensions"`
}

func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Health.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading collection stats: %w", err)
	}

	return jsonResource(req.Params.URI, collectionInfo{
		Name:       stats.Name,
		Records:    stats.Records,
		Documents:  stats.Documents,
		Dimensions: stats.Dimensions,
	})
}

type componentInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealthResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	statuses := s.ports.Health.Check(ctx)

	infos := make([]componentInfo, len(statuses))
	for i, st := range statuses {
		infos[i] = componentInfo{
			Name:      st.Name,
			Kind:      st.Kind,
			Healthy:   st.Healthy(),
			LatencyMS: st.Latency.Milliseconds(),
		}
		if st.Err != nil {
			infos[i].Error = st.Err.Error()
		}
	}

	return jsonResource(req.Params.URI, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

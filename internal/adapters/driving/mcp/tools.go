package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// AnswerContextInput is the input schema for the answer_context tool.
type AnswerContextInput struct {
	Question string   `json:"question" jsonschema:"the question to retrieve context for"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"maximum number of passages (default from configuration)"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"drop passages with cosine similarity below this value"`
}

// AnswerContextOutput is the output schema for the answer_context tool.
type AnswerContextOutput struct {
	Question  string          `json:"question"`
	Passages  []PassageOutput `json:"passages"`
	Count     int             `json:"count"`
	Truncated bool            `json:"truncated,omitempty"`
	Context   string          `json:"context"`
}

// PassageOutput is one ranked passage.
type PassageOutput struct {
	Rank       int     `json:"rank"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	DocumentID string `json:"document_id" jsonschema:"identifier of the document; re-using an id replaces the prior version"`
	Text       string `json:"text" jsonschema:"plain text content to index"`
	Title      string `json:"title,omitempty" jsonschema:"optional human-readable title"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	DocumentID         string `json:"document_id"`
	State              string `json:"state"`
	ChunksTotal        int    `json:"chunks_total"`
	ChunksIndexed      int    `json:"chunks_indexed"`
	ChunksReplaced     int    `json:"chunks_replaced"`
	FailedChunkIndices []int  `json:"failed_chunk_indices,omitempty"`
	Backend            string `json:"backend,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer_context",
		Description: "Retrieve ranked, deduplicated passages from the knowledge base for a question",
	}, s.handleAnswerContext)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Chunk, embed and index a piece of text into the knowledge base",
		}, s.handleIngestText)
	}
}

func (s *Server) handleAnswerContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerContextInput,
) (*mcp.CallToolResult, AnswerContextOutput, error) {
	if input.TopK < 0 {
		return nil, AnswerContextOutput{}, fmt.Errorf("top_k must not be negative: %w", domain.ErrInvalidInput)
	}

	opts := domain.QueryOptions{TopK: input.TopK, MinScore: input.MinScore}
	bundle, err := s.ports.Query.AnswerContext(ctx, input.Question, opts)
	if err != nil {
		return nil, AnswerContextOutput{}, err
	}

	output := AnswerContextOutput{
		Question:  bundle.Question,
		Passages:  make([]PassageOutput, len(bundle.Hits)),
		Count:     len(bundle.Hits),
		Truncated: bundle.Truncated,
		Context:   bundle.Text(),
	}
	for i, h := range bundle.Hits {
		output.Passages[i] = PassageOutput{
			Rank:       h.Rank,
			DocumentID: h.Record.DocumentID,
			ChunkIndex: h.Record.ChunkIndex,
			Score:      h.Score,
			Text:       h.Record.Text,
		}
	}

	return nil, output, nil
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	if input.DocumentID == "" {
		return nil, IngestTextOutput{}, errors.New("document_id is required")
	}

	doc := domain.Document{
		ID:          input.DocumentID,
		URI:         "mcp:" + input.DocumentID,
		Title:       input.Title,
		Content:     input.Text,
		ContentType: "text/plain",
		CreatedAt:   time.Now(),
	}

	result, err := s.ports.Ingest.Ingest(ctx, doc)
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{
		DocumentID:         result.DocumentID,
		State:              result.State.String(),
		ChunksTotal:        result.ChunksTotal,
		ChunksIndexed:      result.ChunksIndexed,
		ChunksReplaced:     result.ChunksReplaced,
		FailedChunkIndices: result.FailedChunkIndices,
		Backend:            result.Backend,
	}, nil
}

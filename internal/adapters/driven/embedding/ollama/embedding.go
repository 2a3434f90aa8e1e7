// Package ollama provides an embedding backend for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/embedding"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Backend implements the interface.
var _ driven.EmbeddingBackend = (*Backend)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text
	DefaultBatchSize  = 64
)

// Config holds configuration for the Ollama backend.
type Config struct {
	// Name labels the backend. Defaults to ollama/<model>.
	Name string

	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int

	// BatchSize caps inputs per request (default: 64).
	BatchSize int

	// HTTPClient replaces the default client.
	HTTPClient *http.Client
}

// Backend generates embeddings using Ollama's /api/embed endpoint, which
// accepts a batch of inputs.
type Backend struct {
	client     *http.Client
	name       string
	baseURL    string
	model      string
	dimensions int
	batchSize  int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New creates an Ollama embedding backend.
func New(cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Name == "" {
		cfg.Name = "ollama/" + cfg.Model
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Backend{
		client:     client,
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}
}

// Name identifies the backend.
func (b *Backend) Name() string { return b.name }

// ModelName returns the embedding model.
func (b *Backend) ModelName() string { return b.model }

// Dimensions returns the embedding vector size.
func (b *Backend) Dimensions() int { return b.dimensions }

// BatchSize returns the maximum inputs per request.
func (b *Backend) BatchSize() int { return b.batchSize }

// EmbedBatch embeds texts in one request.
func (b *Backend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(embedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, embedding.TransportError(b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, embedding.NewStatusError(b.name, resp, body)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w: %w", b.name, domain.ErrBackendUnavailable, err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d inputs: %w",
			b.name, len(embedResp.Embeddings), len(texts), domain.ErrBackendUnavailable)
	}
	return embedResp.Embeddings, nil
}

// Ping checks the /api/tags endpoint, which validates connectivity without
// running inference.
func (b *Backend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create ping request: %w", b.name, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return embedding.TransportError(b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return embedding.NewStatusError(b.name, resp, body)
	}
	return nil
}

// Close releases resources.
func (b *Backend) Close() error {
	return nil
}

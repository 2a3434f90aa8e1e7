// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingBackend generates vector embeddings from text using one model.
// Backends are arranged in an ordered fallback chain by the core
// EmbeddingProvider; a backend only ever talks to its own service.
//
// Implementations may include:
//   - Bedrock (amazon.titan-embed-text-v1/v2, cohere.embed-english-v3)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//
// Errors should wrap domain.ErrRateLimited or domain.ErrBackendUnavailable
// when a retry may succeed, and domain.ErrAuthInvalid or
// domain.ErrInvalidInput when it cannot.
type EmbeddingBackend interface {
	// Name identifies the backend in errors and metrics.
	Name() string

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Dimensions returns the embedding vector size (e.g., 1024, 1536).
	Dimensions() int

	// BatchSize returns the maximum texts per EmbedBatch call.
	// Zero means no limit.
	BatchSize() int

	// EmbedBatch generates one embedding per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

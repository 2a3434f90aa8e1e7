package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const unknownDescription = "Unknown"

// BackendType identifies an embedding service provider.
type BackendType string

// Available embedding backends.
const (
	// BackendBedrock is Amazon Bedrock (Titan and Cohere models).
	BackendBedrock BackendType = "bedrock"

	// BackendOpenAI is OpenAI cloud API or a compatible endpoint.
	BackendOpenAI BackendType = "openai"

	// BackendOllama is a local Ollama instance.
	BackendOllama BackendType = "ollama"
)

// IsValid returns true if the backend type is recognised.
func (b BackendType) IsValid() bool {
	switch b {
	case BackendBedrock, BackendOpenAI, BackendOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this backend needs an API key.
func (b BackendType) RequiresAPIKey() bool {
	return b == BackendOpenAI
}

// IsLocal returns true if this backend runs locally.
func (b BackendType) IsLocal() bool {
	return b == BackendOllama
}

// String returns the string representation.
func (b BackendType) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b BackendType) Description() string {
	switch b {
	case BackendBedrock:
		return "Amazon Bedrock (cloud)"
	case BackendOpenAI:
		return "OpenAI (cloud)"
	case BackendOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// StoreType identifies a vector store implementation.
type StoreType string

// Available vector stores.
const (
	StoreMemory   StoreType = "memory"
	StoreSQLite   StoreType = "sqlite"
	StoreQdrant   StoreType = "qdrant"
	StorePGVector StoreType = "pgvector"
)

// IsValid returns true if the store type is recognised.
func (s StoreType) IsValid() bool {
	switch s {
	case StoreMemory, StoreSQLite, StoreQdrant, StorePGVector:
		return true
	default:
		return false
	}
}

// IsPersistent returns true if records survive a process restart.
func (s StoreType) IsPersistent() bool {
	return s != StoreMemory
}

// MetricsType identifies a metrics sink.
type MetricsType string

// Available metrics sinks.
const (
	MetricsNone MetricsType = "none"
	MetricsLog  MetricsType = "log"
	MetricsOTel MetricsType = "otel"
)

// IsValid returns true if the metrics type is recognised.
func (m MetricsType) IsValid() bool {
	switch m {
	case MetricsNone, MetricsLog, MetricsOTel, "":
		return true
	default:
		return false
	}
}

// ChunkSettings controls how documents are split.
type ChunkSettings struct {
	// Strategy names the chunker implementation.
	Strategy string

	// MaxChars is the maximum chunk length in bytes.
	MaxChars int

	// Overlap is the number of bytes shared by consecutive chunks.
	Overlap int

	// MinTail is the smallest unique content a final chunk may carry.
	MinTail int

	// MaxChunks caps chunks per document. Zero disables the cap.
	MaxChunks int
}

// IngestSettings controls the ingestion pipeline.
type IngestSettings struct {
	// BatchSize is the number of chunks per embedding call.
	BatchSize int

	// Concurrency bounds in-flight embedding batches.
	Concurrency int

	// WriteAttempts is the number of tries per record write.
	WriteAttempts int

	// Timeout bounds a single document's ingestion. Zero disables it.
	Timeout time.Duration
}

// QuerySettings controls retrieval.
type QuerySettings struct {
	// TopK is the default number of hits.
	TopK int

	// MinScore is the default similarity floor, if any.
	MinScore *float64

	// MaxContextChars caps the total hit text in a bundle. Zero disables it.
	MaxContextChars int

	// DedupOverlapRatio is the span overlap, relative to the shorter span,
	// above which two hits from one document are duplicates.
	DedupOverlapRatio float64

	// Timeout bounds a single query. Zero disables it.
	Timeout time.Duration
}

// BackendSettings configures one embedding backend in the fallback chain.
type BackendSettings struct {
	// Type is the backend provider.
	Type BackendType

	// Name labels the backend in errors and metrics. Defaults to type/model.
	Name string

	// Model is the embedding model identifier.
	Model string

	// Dimensions is the vector length the model produces.
	Dimensions int

	// BatchSize is the maximum texts per request.
	BatchSize int

	// BaseURL is the API endpoint (OpenAI-compatible and Ollama).
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string

	// APIKey is resolved from APIKeyEnv at load time.
	APIKey string

	// Region is the AWS region (Bedrock).
	Region string

	// Timeout bounds a single request.
	Timeout time.Duration

	// RequestsPerSecond rate limits requests. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter bucket size.
	Burst int
}

// DisplayName returns Name or a type/model label.
func (b BackendSettings) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%s/%s", b.Type, b.Model)
}

// IsConfigured returns true if the backend is set up.
func (b BackendSettings) IsConfigured() bool {
	if !b.Type.IsValid() || b.Model == "" {
		return false
	}
	if b.Type.RequiresAPIKey() && b.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds the ordered backend chain and retry policy.
type EmbeddingSettings struct {
	// Backends in priority order.
	Backends []BackendSettings

	// MaxRetries is the number of retries per backend for transient errors.
	MaxRetries int

	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff delay.
	RetryMaxInterval time.Duration
}

// VectorStoreSettings configures the vector index.
type VectorStoreSettings struct {
	// Type selects the implementation.
	Type StoreType

	// Dimensions fixes the collection dimensionality. Zero lets the first
	// record establish it.
	Dimensions int

	// Collection is the collection or table name.
	Collection string

	// Path is the database file (sqlite).
	Path string

	// Host and Port address the server (qdrant).
	Host string
	Port int

	// APIKeyEnv names the environment variable holding APIKey (qdrant).
	APIKeyEnv string

	// APIKey authenticates against the server, resolved from APIKeyEnv.
	APIKey string

	// UseTLS enables TLS for the server connection (qdrant).
	UseTLS bool

	// DSN is the connection string (pgvector).
	DSN string
}

// MetricsSettings selects where pipeline events go.
type MetricsSettings struct {
	Type MetricsType

	// MeterName is the OpenTelemetry instrumentation scope.
	MeterName string
}

// Settings holds all application settings.
type Settings struct {
	Chunker     ChunkSettings
	Ingest      IngestSettings
	Query       QuerySettings
	Embedding   EmbeddingSettings
	VectorStore VectorStoreSettings
	Metrics     MetricsSettings
}

// DefaultSettings returns settings with sensible defaults.
// The embedding chain tries Titan v1, then Titan v2, then Cohere v3 on Bedrock.
func DefaultSettings() Settings {
	return Settings{
		Chunker: ChunkSettings{
			Strategy: "sentence-window",
			MaxChars: 1000,
			Overlap:  100,
			MinTail:  20,
		},
		Ingest: IngestSettings{
			BatchSize:     16,
			Concurrency:   4,
			WriteAttempts: 3,
			Timeout:       5 * time.Minute,
		},
		Query: QuerySettings{
			TopK:              5,
			MaxContextChars:   8000,
			DedupOverlapRatio: 0.5,
			Timeout:           30 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Backends:             DefaultBedrockBackends("us-east-1"),
			MaxRetries:           3,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     10 * time.Second,
		},
		VectorStore: VectorStoreSettings{
			Type:       StoreSQLite,
			Collection: "documents",
		},
		Metrics: MetricsSettings{
			Type:      MetricsLog,
			MeterName: "kb",
		},
	}
}

// DefaultBedrockBackends returns the Bedrock model fallback list.
func DefaultBedrockBackends(region string) []BackendSettings {
	models := []string{
		"amazon.titan-embed-text-v1",
		"amazon.titan-embed-text-v2:0",
		"cohere.embed-english-v3",
	}
	backends := make([]BackendSettings, 0, len(models))
	for _, m := range models {
		backends = append(backends, BackendSettings{
			Type:       BackendBedrock,
			Model:      m,
			Dimensions: EmbeddingDimensions()[m],
			BatchSize:  DefaultBatchSizes()[m],
			Region:     region,
			Timeout:    30 * time.Second,
		})
	}
	return backends
}

// AllBackendTypes returns all embedding backends.
func AllBackendTypes() []BackendType {
	return []BackendType{
		BackendBedrock,
		BackendOpenAI,
		BackendOllama,
	}
}

// DefaultEmbeddingModels returns default models for each backend.
func DefaultEmbeddingModels() map[BackendType]string {
	return map[BackendType]string{
		BackendBedrock: "amazon.titan-embed-text-v2:0",
		BackendOllama:  "nomic-embed-text",
		BackendOpenAI:  "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Bedrock models
		"amazon.titan-embed-text-v1":   1536,
		"amazon.titan-embed-text-v2:0": 1024,
		"cohere.embed-english-v3":      1024,
		"cohere.embed-multilingual-v3": 1024,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// DefaultBatchSizes returns per-request text limits for models that have one.
// Titan accepts a single text per request.
func DefaultBatchSizes() map[string]int {
	return map[string]int{
		"amazon.titan-embed-text-v1":   1,
		"amazon.titan-embed-text-v2:0": 1,
		"cohere.embed-english-v3":      96,
		"cohere.embed-multilingual-v3": 96,
	}
}

// Validate checks the settings for consistency.
// It returns a *ConfigurationError describing the first problem found.
func (s Settings) Validate() error {
	if err := s.Chunker.Validate(); err != nil {
		return err
	}
	if s.Ingest.BatchSize <= 0 {
		return &ConfigurationError{Field: "ingest.batch_size", Reason: "must be positive"}
	}
	if s.Ingest.Concurrency <= 0 {
		return &ConfigurationError{Field: "ingest.concurrency", Reason: "must be positive"}
	}
	if s.Ingest.WriteAttempts <= 0 {
		return &ConfigurationError{Field: "ingest.write_attempts", Reason: "must be at least 1"}
	}
	if s.Query.TopK <= 0 {
		return &ConfigurationError{Field: "query.top_k", Reason: "must be positive"}
	}
	if s.Query.MaxContextChars < 0 {
		return &ConfigurationError{Field: "query.max_context_chars", Reason: "must not be negative"}
	}
	if s.Query.MaxContextChars > 0 && s.Query.MaxContextChars < s.Chunker.MaxChars {
		return &ConfigurationError{
			Field:  "query.max_context_chars",
			Reason: fmt.Sprintf("must be zero or at least chunker.max_chars %d", s.Chunker.MaxChars),
		}
	}
	if s.Query.DedupOverlapRatio <= 0 || s.Query.DedupOverlapRatio > 1 {
		return &ConfigurationError{Field: "query.dedup_overlap_ratio", Reason: "must be in (0, 1]"}
	}
	if len(s.Embedding.Backends) == 0 {
		return &ConfigurationError{Field: "embedding.backends", Reason: "at least one backend is required"}
	}
	if s.Embedding.MaxRetries < 0 {
		return &ConfigurationError{Field: "embedding.max_retries", Reason: "must not be negative"}
	}
	for i, b := range s.Embedding.Backends {
		field := fmt.Sprintf("embedding.backends[%d]", i)
		if !b.Type.IsValid() {
			return &ConfigurationError{Field: field + ".type", Reason: fmt.Sprintf("unknown backend %q", b.Type)}
		}
		if b.Model == "" {
			return &ConfigurationError{Field: field + ".model", Reason: "required"}
		}
		if b.Dimensions <= 0 {
			return &ConfigurationError{Field: field + ".dimensions", Reason: "must be positive"}
		}
		if b.BatchSize < 0 {
			return &ConfigurationError{Field: field + ".batch_size", Reason: "must not be negative"}
		}
		if s.VectorStore.Dimensions > 0 && b.Dimensions != s.VectorStore.Dimensions {
			return &ConfigurationError{
				Field:  field + ".dimensions",
				Reason: fmt.Sprintf("%d does not match vector_store.dimensions %d", b.Dimensions, s.VectorStore.Dimensions),
			}
		}
	}
	if !s.VectorStore.Type.IsValid() {
		return &ConfigurationError{Field: "vector_store.type", Reason: fmt.Sprintf("unknown store %q", s.VectorStore.Type)}
	}
	if s.VectorStore.Dimensions < 0 {
		return &ConfigurationError{Field: "vector_store.dimensions", Reason: "must not be negative"}
	}
	if s.VectorStore.Type == StorePGVector && s.VectorStore.DSN == "" {
		return &ConfigurationError{Field: "vector_store.dsn", Reason: "required for pgvector"}
	}
	if !s.Metrics.Type.IsValid() {
		return &ConfigurationError{Field: "metrics.type", Reason: fmt.Sprintf("unknown sink %q", s.Metrics.Type)}
	}
	return nil
}

// Validate checks chunking parameters.
func (c ChunkSettings) Validate() error {
	if c.MaxChars < utf8.UTFMax {
		return &ConfigurationError{Field: "chunker.max_chars", Reason: fmt.Sprintf("must be at least %d to hold any character", utf8.UTFMax)}
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChars {
		return &ConfigurationError{Field: "chunker.overlap", Reason: "must be in [0, max_chars)"}
	}
	if c.MinTail < 0 || c.MinTail >= c.MaxChars {
		return &ConfigurationError{Field: "chunker.min_tail", Reason: "must be in [0, max_chars)"}
	}
	if c.MaxChunks < 0 {
		return &ConfigurationError{Field: "chunker.max_chunks", Reason: "must not be negative"}
	}
	return nil
}

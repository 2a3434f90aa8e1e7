package file

import (
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// duration reads and writes Go duration strings such as "30s".
type duration struct {
	time.Duration
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Chunker     chunkerSection     `toml:"chunker"`
	Ingest      ingestSection      `toml:"ingest"`
	Query       querySection       `toml:"query"`
	Embedding   embeddingSection   `toml:"embedding"`
	VectorStore vectorStoreSection `toml:"vector_store"`
	Metrics     metricsSection     `toml:"metrics"`
}

type chunkerSection struct {
	Strategy  string `toml:"strategy"`
	MaxChars  int    `toml:"max_chars"`
	Overlap   int    `toml:"overlap"`
	MinTail   int    `toml:"min_tail"`
	MaxChunks int    `toml:"max_chunks"`
}

type ingestSection struct {
	BatchSize     int      `toml:"batch_size"`
	Concurrency   int      `toml:"concurrency"`
	WriteAttempts int      `toml:"write_attempts"`
	Timeout       duration `toml:"timeout"`
}

type querySection struct {
	TopK              int      `toml:"top_k"`
	MinScore          *float64 `toml:"min_score,omitempty"`
	MaxContextChars   int      `toml:"max_context_chars"`
	DedupOverlapRatio float64  `toml:"dedup_overlap_ratio"`
	Timeout           duration `toml:"timeout"`
}

type embeddingSection struct {
	MaxRetries           int              `toml:"max_retries"`
	RetryInitialInterval duration         `toml:"retry_initial_interval"`
	RetryMaxInterval     duration         `toml:"retry_max_interval"`
	Backends             []backendSection `toml:"backends"`
}

type backendSection struct {
	Type              string   `toml:"type"`
	Name              string   `toml:"name,omitempty"`
	Model             string   `toml:"model"`
	Dimensions        int      `toml:"dimensions,omitempty"`
	BatchSize         int      `toml:"batch_size,omitempty"`
	BaseURL           string   `toml:"base_url,omitempty"`
	APIKeyEnv         string   `toml:"api_key_env,omitempty"`
	Region            string   `toml:"region,omitempty"`
	Timeout           duration `toml:"timeout,omitempty"`
	RequestsPerSecond float64  `toml:"requests_per_second,omitempty"`
	Burst             int      `toml:"burst,omitempty"`
}

type vectorStoreSection struct {
	Type       string `toml:"type"`
	Dimensions int    `toml:"dimensions"`
	Collection string `toml:"collection"`
	Path       string `toml:"path,omitempty"`
	Host       string `toml:"host,omitempty"`
	Port       int    `toml:"port,omitempty"`
	APIKeyEnv  string `toml:"api_key_env,omitempty"`
	UseTLS     bool   `toml:"use_tls,omitempty"`
	DSN        string `toml:"dsn,omitempty"`
}

type metricsSection struct {
	Type      string `toml:"type"`
	MeterName string `toml:"meter_name,omitempty"`
}

// fromSettings converts settings to the file layout. Resolved secrets are
// dropped; only the env var names are kept.
func fromSettings(s domain.Settings) fileConfig {
	fc := fileConfig{
		Chunker: chunkerSection{
			Strategy:  s.Chunker.Strategy,
			MaxChars:  s.Chunker.MaxChars,
			Overlap:   s.Chunker.Overlap,
			MinTail:   s.Chunker.MinTail,
			MaxChunks: s.Chunker.MaxChunks,
		},
		Ingest: ingestSection{
			BatchSize:     s.Ingest.BatchSize,
			Concurrency:   s.Ingest.Concurrency,
			WriteAttempts: s.Ingest.WriteAttempts,
			Timeout:       duration{s.Ingest.Timeout},
		},
		Query: querySection{
			TopK:              s.Query.TopK,
			MinScore:          s.Query.MinScore,
			MaxContextChars:   s.Query.MaxContextChars,
			DedupOverlapRatio: s.Query.DedupOverlapRatio,
			Timeout:           duration{s.Query.Timeout},
		},
		Embedding: embeddingSection{
			MaxRetries:           s.Embedding.MaxRetries,
			RetryInitialInterval: duration{s.Embedding.RetryInitialInterval},
			RetryMaxInterval:     duration{s.Embedding.RetryMaxInterval},
		},
		VectorStore: vectorStoreSection{
			Type:       string(s.VectorStore.Type),
			Dimensions: s.VectorStore.Dimensions,
			Collection: s.VectorStore.Collection,
			Path:       s.VectorStore.Path,
			Host:       s.VectorStore.Host,
			Port:       s.VectorStore.Port,
			APIKeyEnv:  s.VectorStore.APIKeyEnv,
			UseTLS:     s.VectorStore.UseTLS,
			DSN:        s.VectorStore.DSN,
		},
		Metrics: metricsSection{
			Type:      string(s.Metrics.Type),
			MeterName: s.Metrics.MeterName,
		},
	}
	for _, b := range s.Embedding.Backends {
		fc.Embedding.Backends = append(fc.Embedding.Backends, backendSection{
			Type:              string(b.Type),
			Name:              b.Name,
			Model:             b.Model,
			Dimensions:        b.Dimensions,
			BatchSize:         b.BatchSize,
			BaseURL:           b.BaseURL,
			APIKeyEnv:         b.APIKeyEnv,
			Region:            b.Region,
			Timeout:           duration{b.Timeout},
			RequestsPerSecond: b.RequestsPerSecond,
			Burst:             b.Burst,
		})
	}
	return fc
}

// toSettings converts the file layout back to settings. Backend gaps are
// filled from the known model tables.
func (fc fileConfig) toSettings() domain.Settings {
	s := domain.Settings{
		Chunker: domain.ChunkSettings{
			Strategy:  fc.Chunker.Strategy,
			MaxChars:  fc.Chunker.MaxChars,
			Overlap:   fc.Chunker.Overlap,
			MinTail:   fc.Chunker.MinTail,
			MaxChunks: fc.Chunker.MaxChunks,
		},
		Ingest: domain.IngestSettings{
			BatchSize:     fc.Ingest.BatchSize,
			Concurrency:   fc.Ingest.Concurrency,
			WriteAttempts: fc.Ingest.WriteAttempts,
			Timeout:       fc.Ingest.Timeout.Duration,
		},
		Query: domain.QuerySettings{
			TopK:              fc.Query.TopK,
			MinScore:          fc.Query.MinScore,
			MaxContextChars:   fc.Query.MaxContextChars,
			DedupOverlapRatio: fc.Query.DedupOverlapRatio,
			Timeout:           fc.Query.Timeout.Duration,
		},
		Embedding: domain.EmbeddingSettings{
			MaxRetries:           fc.Embedding.MaxRetries,
			RetryInitialInterval: fc.Embedding.RetryInitialInterval.Duration,
			RetryMaxInterval:     fc.Embedding.RetryMaxInterval.Duration,
		},
		VectorStore: domain.VectorStoreSettings{
			Type:       domain.StoreType(fc.VectorStore.Type),
			Dimensions: fc.VectorStore.Dimensions,
			Collection: fc.VectorStore.Collection,
			Path:       fc.VectorStore.Path,
			Host:       fc.VectorStore.Host,
			Port:       fc.VectorStore.Port,
			APIKeyEnv:  fc.VectorStore.APIKeyEnv,
			UseTLS:     fc.VectorStore.UseTLS,
			DSN:        fc.VectorStore.DSN,
		},
		Metrics: domain.MetricsSettings{
			Type:      domain.MetricsType(fc.Metrics.Type),
			MeterName: fc.Metrics.MeterName,
		},
	}

	dims := domain.EmbeddingDimensions()
	batches := domain.DefaultBatchSizes()
	for _, b := range fc.Embedding.Backends {
		bs := domain.BackendSettings{
			Type:              domain.BackendType(b.Type),
			Name:              b.Name,
			Model:             b.Model,
			Dimensions:        b.Dimensions,
			BatchSize:         b.BatchSize,
			BaseURL:           b.BaseURL,
			APIKeyEnv:         b.APIKeyEnv,
			Region:            b.Region,
			Timeout:           b.Timeout.Duration,
			RequestsPerSecond: b.RequestsPerSecond,
			Burst:             b.Burst,
		}
		if bs.Model == "" {
			bs.Model = domain.DefaultEmbeddingModels()[bs.Type]
		}
		if bs.Dimensions == 0 {
			bs.Dimensions = dims[bs.Model]
		}
		if bs.BatchSize == 0 {
			bs.BatchSize = batches[bs.Model]
		}
		if bs.Timeout == 0 {
			bs.Timeout = 30 * time.Second
		}
		if bs.Type == domain.BackendOpenAI && bs.APIKeyEnv == "" {
			bs.APIKeyEnv = "OPENAI_API_KEY"
		}
		s.Embedding.Backends = append(s.Embedding.Backends, bs)
	}
	return s
}

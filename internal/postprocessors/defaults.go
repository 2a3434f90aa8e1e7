package postprocessors

import (
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in chunkers with the registry.
// Call this during application initialisation.
func RegisterDefaults(r *Registry) {
	r.Register(chunker.Name, buildChunker)
}

// NewDefaultRegistry returns a registry with the built-in chunkers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// buildChunker creates the sentence-window chunker from settings.
// Invalid sizes are reported as *domain.ConfigurationError.
func buildChunker(cfg domain.ChunkSettings) (driven.Chunker, error) {
	p, err := chunker.New(
		chunker.WithChunkSize(cfg.MaxChars),
		chunker.WithOverlap(cfg.Overlap),
		chunker.WithMinTail(cfg.MinTail),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Package postprocessors provides document content processing implementations.
package postprocessors

import (
	"fmt"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// BuilderFunc creates a Chunker from the chunker settings.
type BuilderFunc func(cfg domain.ChunkSettings) (driven.Chunker, error)

// Registry maps chunker names to their builders.
// It allows dynamic construction of chunkers from configuration.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new chunker registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a chunker builder to the registry.
// Name should be unique and match the chunker's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates the chunker named by cfg.Strategy.
// Returns an error wrapping domain.ErrUnsupportedType for unknown names.
func (r *Registry) Build(cfg domain.ChunkSettings) (driven.Chunker, error) {
	builder, ok := r.builders[cfg.Strategy]
	if !ok {
		return nil, fmt.Errorf("chunker %q: %w", cfg.Strategy, domain.ErrUnsupportedType)
	}
	return builder(cfg)
}

// Has returns true if a chunker with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered chunker names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

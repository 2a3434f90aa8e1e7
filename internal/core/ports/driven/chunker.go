package driven

import (
	"iter"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// Chunker splits a document into ordered chunks.
type Chunker interface {
	// Name returns the chunker name for logging and configuration.
	Name() string

	// Chunks returns a lazy sequence over the document's chunks.
	// Each iteration restarts from the beginning and may stop early.
	Chunks(doc domain.Document) iter.Seq[domain.Chunk]
}

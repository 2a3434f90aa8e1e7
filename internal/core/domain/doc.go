// Package domain defines the core business entities for kb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Normalised text submitted for ingestion
//   - Chunk: A contiguous span of a document
//   - EmbeddingVector: A model's vector for a text
//   - IndexRecord: A chunk and its vector as stored in the index
//   - RetrievalHit / ContextBundle: Query results
//   - IngestionResult: The outcome of one document's ingestion
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

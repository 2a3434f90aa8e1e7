// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - EmbeddingBackend: One embedding model behind a remote or local API
//   - VectorStore: Record persistence and cosine similarity queries
//   - Chunker: Splits document text into overlapping spans
//   - Normaliser / NormaliserRegistry: Extracts text from raw documents
//   - DocumentSource / WatchableSource: Fetches raw documents (filesystem, S3)
//   - MetricsSink: Receives pipeline events; may be a no-op
//   - SettingsStore: Loads and saves Settings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven

// Package driving defines the entry points the CLI and the MCP server call
// into: ingestion, retrieval, source synchronisation and health reporting.
//
// Implementations live in internal/core/services. Adapters depend on these
// interfaces so tests can substitute hand-written fakes.
package driving

// Package mcp provides an MCP (Model Context Protocol) server adapter for kb.
// It lets AI assistants retrieve ranked context from the vector index and
// add text to it.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

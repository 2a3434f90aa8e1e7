package mcp

import (
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Query answers questions with ranked context.
	Query driving.QueryService

	// Ingest indexes text. The ingest_text tool is only offered when set.
	Ingest driving.IngestionService

	// Health backs the collection and health resources. Optional.
	Health driving.HealthService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}

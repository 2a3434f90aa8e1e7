package driven

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// MetricsSink receives pipeline events.
// Core services never fail because of a sink: errors and panics are discarded.
type MetricsSink interface {
	Record(ctx context.Context, event domain.Event) error
}

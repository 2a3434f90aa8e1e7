package metrics

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
)

// Log writes each event as a structured log line. Failures log at warn
// level, successes at debug level.
type Log struct{}

var _ driven.MetricsSink = Log{}

// Record implements driven.MetricsSink.
func (Log) Record(_ context.Context, e domain.Event) error {
	logger.With(e.Err != nil, "pipeline "+e.Stage, Fields(e))
	return nil
}

// Fields renders an event as log fields, omitting empty values.
func Fields(e domain.Event) logger.Fields {
	f := logger.Fields{
		"duration_ms": e.Duration.Milliseconds(),
		"items":       e.Items,
		"ok":          e.Success(),
	}
	if e.Backend != "" {
		f["backend"] = e.Backend
	}
	if e.Model != "" {
		f["model"] = e.Model
	}
	if e.Err != nil {
		f["error"] = e.Err.Error()
	}
	return f
}

package services

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// report forwards an event to the sink. A failing or panicking sink never
// affects the pipeline.
func report(ctx context.Context, sink driven.MetricsSink, event domain.Event) {
	if sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	_ = sink.Record(ctx, event)
}

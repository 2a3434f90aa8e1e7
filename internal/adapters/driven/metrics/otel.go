package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// InstrumentationName names the meter used when none is supplied.
const InstrumentationName = "github.com/jbrcoleman/bedrock-vector-search"

// OTel records events as OpenTelemetry instruments:
//
//	kb.pipeline.events    counter, one per event
//	kb.pipeline.items     counter of texts, chunks or hits
//	kb.pipeline.duration  histogram in seconds
//
// Every measurement carries stage, backend and outcome attributes.
type OTel struct {
	events   metric.Int64Counter
	items    metric.Int64Counter
	duration metric.Float64Histogram
}

var _ driven.MetricsSink = (*OTel)(nil)

// NewOTel creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewOTel(meter metric.Meter) (*OTel, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	events, err := meter.Int64Counter("kb.pipeline.events",
		metric.WithDescription("Pipeline steps observed"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	items, err := meter.Int64Counter("kb.pipeline.items",
		metric.WithDescription("Texts, chunks or hits processed"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("creating items counter: %w", err)
	}
	duration, err := meter.Float64Histogram("kb.pipeline.duration",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &OTel{events: events, items: items, duration: duration}, nil
}

// Record implements driven.MetricsSink.
func (o *OTel) Record(ctx context.Context, e domain.Event) error {
	outcome := "success"
	if e.Err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", e.Stage),
		attribute.String("backend", e.Backend),
		attribute.String("outcome", outcome),
	)

	o.events.Add(ctx, 1, attrs)
	if e.Items > 0 {
		o.items.Add(ctx, int64(e.Items), attrs)
	}
	o.duration.Record(ctx, e.Duration.Seconds(), attrs)
	return nil
}

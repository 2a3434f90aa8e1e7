package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Nop discards every event.
type Nop struct{}

var _ driven.MetricsSink = Nop{}

// Record implements driven.MetricsSink.
func (Nop) Record(context.Context, domain.Event) error { return nil }

// Multi forwards events to several sinks.
type Multi []driven.MetricsSink

var _ driven.MetricsSink = Multi(nil)

// NewMulti returns a sink over the non-nil sinks. It returns Nop when none
// remain and the sink itself when only one does.
func NewMulti(sinks ...driven.MetricsSink) driven.MetricsSink {
	var m Multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

// Record delivers the event to every sink, even after one fails or panics.
func (m Multi) Record(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, s := range m {
		if err := safeRecord(ctx, s, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeRecord(ctx context.Context, s driven.MetricsSink, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metrics sink panicked: %v", r)
		}
	}()
	return s.Record(ctx, event)
}

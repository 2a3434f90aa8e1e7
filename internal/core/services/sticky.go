package services

import (
	"context"
	"sync/atomic"
)

type embeddingRunKey struct{}

type requiredDimensionsKey struct{}

// EmbeddingRun pins one embedding backend for every call made within an
// ingestion run. The first backend to succeed claims the run; the claim is
// written at most once. A run belongs to a single EmbeddingProvider.
type EmbeddingRun struct {
	choice atomic.Pointer[stickyChoice]
}

type stickyChoice struct {
	index int
	name  string
}

// WithEmbeddingRun returns a context carrying a fresh, unclaimed run.
func WithEmbeddingRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, embeddingRunKey{}, &EmbeddingRun{})
}

// EmbeddingRunFrom returns the run attached to ctx, or nil.
func EmbeddingRunFrom(ctx context.Context) *EmbeddingRun {
	run, _ := ctx.Value(embeddingRunKey{}).(*EmbeddingRun)
	return run
}

// Backend returns the name of the claimed backend, or "" if unclaimed.
func (r *EmbeddingRun) Backend() string {
	if c := r.choice.Load(); c != nil {
		return c.name
	}
	return ""
}

func (r *EmbeddingRun) sticky() (int, bool) {
	if c := r.choice.Load(); c != nil {
		return c.index, true
	}
	return 0, false
}

// claim records index as the run's backend unless another call got there
// first, and returns the winning index.
func (r *EmbeddingRun) claim(index int, name string) int {
	r.choice.CompareAndSwap(nil, &stickyChoice{index: index, name: name})
	return r.choice.Load().index
}

// WithRequiredDimensions restricts embedding to backends producing n-length
// vectors. Zero lifts the restriction.
func WithRequiredDimensions(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, requiredDimensionsKey{}, n)
}

func requiredDimensions(ctx context.Context) int {
	n, _ := ctx.Value(requiredDimensionsKey{}).(int)
	return n
}

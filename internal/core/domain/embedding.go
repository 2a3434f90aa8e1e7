package domain

import "context"

// EmbeddingVector is a fixed-length numeric vector produced by a model.
type EmbeddingVector struct {
	// Values holds the vector components.
	Values []float32

	// Model identifies the backend model that produced the vector.
	Model string

	// Dimensions is the declared dimensionality of the producing model.
	Dimensions int
}

// Len returns the number of components.
func (v EmbeddingVector) Len() int {
	return len(v.Values)
}

// EmbeddingPurpose tells asymmetric models whether text is being indexed
// or searched for.
type EmbeddingPurpose int

const (
	// PurposeDocument embeds text for storage.
	PurposeDocument EmbeddingPurpose = iota

	// PurposeQuery embeds a search question.
	PurposeQuery
)

type embeddingPurposeKey struct{}

// WithEmbeddingPurpose returns a context carrying p.
func WithEmbeddingPurpose(ctx context.Context, p EmbeddingPurpose) context.Context {
	return context.WithValue(ctx, embeddingPurposeKey{}, p)
}

// EmbeddingPurposeFrom returns the purpose carried by ctx, PurposeDocument
// by default.
func EmbeddingPurposeFrom(ctx context.Context) EmbeddingPurpose {
	p, _ := ctx.Value(embeddingPurposeKey{}).(EmbeddingPurpose)
	return p
}

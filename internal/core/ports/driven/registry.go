package driven

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// NormaliserRegistry routes a raw document to the normaliser registered
// for its MIME type. Documents no normaliser accepts fail with
// domain.ErrUnsupportedType and are never chunked.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching normaliser.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}

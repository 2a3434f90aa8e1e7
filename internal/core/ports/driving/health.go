package driving

import (
	"context"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// ComponentStatus is the result of checking one backend or store.
type ComponentStatus struct {
	// Name identifies the component.
	Name string

	// Kind is "embedding" or "store".
	Kind string

	// Latency is how long the check took.
	Latency time.Duration

	// Err is nil when the component is healthy.
	Err error
}

// Healthy reports whether the check passed.
func (s ComponentStatus) Healthy() bool {
	return s.Err == nil
}

// HealthService reports on configured components.
type HealthService interface {
	// Check pings every embedding backend and the vector store.
	Check(ctx context.Context) []ComponentStatus

	// Stats describes the active collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)
}

package services

import (
	"context"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// DefaultPingTimeout bounds each component check.
const DefaultPingTimeout = 5 * time.Second

// HealthService checks connectivity of the embedding chain and the store.
type HealthService struct {
	backends []driven.EmbeddingBackend
	store    driven.VectorStore
	timeout  time.Duration
}

// NewHealthService creates a new health service.
func NewHealthService(backends []driven.EmbeddingBackend, store driven.VectorStore) *HealthService {
	return &HealthService{backends: backends, store: store, timeout: DefaultPingTimeout}
}

// Check pings every backend in priority order, then the store. Each ping
// is bounded by the service timeout.
func (s *HealthService) Check(ctx context.Context) []driving.ComponentStatus {
	statuses := make([]driving.ComponentStatus, 0, len(s.backends)+1)
	for _, b := range s.backends {
		statuses = append(statuses, s.ping(ctx, b.Name(), "embedding", b.Ping))
	}
	if s.store != nil {
		statuses = append(statuses, s.ping(ctx, "vector store", "store", s.store.Ping))
	}
	return statuses
}

// Stats describes the active collection.
func (s *HealthService) Stats(ctx context.Context) (domain.CollectionStats, error) {
	return s.store.Stats(ctx)
}

func (s *HealthService) ping(ctx context.Context, name, kind string, fn func(context.Context) error) driving.ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	return driving.ComponentStatus{
		Name:    name,
		Kind:    kind,
		Latency: time.Since(start),
		Err:     err,
	}
}

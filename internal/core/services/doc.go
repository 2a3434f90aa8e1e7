// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion and query pipelines live here together with the
// EmbeddingProvider, which arranges embedding backends into an ordered
// fallback chain. Services hold no logging dependency; observations are
// reported through a driven.MetricsSink.
package services

// Package metrics provides MetricsSink implementations: a structured log
// sink, an OpenTelemetry sink and a fan-out over several sinks.
package metrics

package domain

import "time"

// Stage names reported in metrics events.
const (
	StageEmbed  = "embed"
	StageChunk  = "chunk"
	StageIndex  = "index"
	StageDelete = "delete"
	StageQuery  = "query"
	StageIngest = "ingest"
)

// Event is a single observation reported to a metrics sink.
type Event struct {
	// Stage is the pipeline stage, see the Stage constants.
	Stage string

	// Backend is the embedding backend or store involved, if any.
	Backend string

	// Model is the embedding model, if any.
	Model string

	// Duration is how long the step took.
	Duration time.Duration

	// Items is the number of texts, chunks or hits processed.
	Items int

	// Err is the step's error, nil on success.
	Err error
}

// Success reports whether the step succeeded.
func (e Event) Success() bool {
	return e.Err == nil
}

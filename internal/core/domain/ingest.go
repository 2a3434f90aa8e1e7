package domain

import "time"

// IngestState is a stage of the ingestion state machine:
// Received → Chunked → Embedded → Indexed → Complete, or Failed from any
// non-terminal stage.
type IngestState string

// Ingestion states.
const (
	StateReceived IngestState = "received"
	StateChunked  IngestState = "chunked"
	StateEmbedded IngestState = "embedded"
	StateIndexed  IngestState = "indexed"
	StateComplete IngestState = "complete"
	StateFailed   IngestState = "failed"
)

// String returns the state name.
func (s IngestState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s IngestState) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// IngestionResult summarises one document's pass through the pipeline.
type IngestionResult struct {
	// DocumentID is the ingested document.
	DocumentID string

	// State is the final state, Complete or Failed.
	State IngestState

	// FailedStage is the stage that was being attempted when the run failed.
	FailedStage IngestState

	// ChunksTotal is the number of chunks produced.
	ChunksTotal int

	// ChunksIndexed is the number of records written to the store.
	ChunksIndexed int

	// ChunksReplaced is the number of prior records removed for this document.
	ChunksReplaced int

	// FailedChunkIndices lists chunks that could not be embedded or written,
	// in ascending order.
	FailedChunkIndices []int

	// Backend is the embedding backend used for the run.
	Backend string

	// Duration is the wall time of the run.
	Duration time.Duration

	// Err is the failure cause for a Failed result.
	Err error
}

// Partial reports whether the run completed but some chunks are missing.
func (r *IngestionResult) Partial() bool {
	return r.State == StateComplete && len(r.FailedChunkIndices) > 0
}

// Failed reports whether the run failed.
func (r *IngestionResult) Failed() bool {
	return r.State == StateFailed
}

// Advance moves the result to the next state.
func (r *IngestionResult) Advance(s IngestState) {
	r.State = s
}

// Fail marks the result failed while attempting stage.
func (r *IngestionResult) Fail(stage IngestState, err error) {
	r.FailedStage = stage
	r.State = StateFailed
	r.Err = err
}

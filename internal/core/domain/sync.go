package domain

import "time"

// SyncReport summarises a full pass over a document source.
type SyncReport struct {
	// Source is the source type.
	Source string

	// Documents is the number of documents fetched.
	Documents int

	// Indexed is the number of documents that reached Complete.
	Indexed int

	// Partial is the number of Complete documents with failed chunks.
	Partial int

	// Failed is the number of documents that ended Failed.
	Failed int

	// Chunks is the total number of records written.
	Chunks int

	// Errors holds per-document and source errors, in arrival order.
	Errors []error

	// Duration is the wall time of the sync.
	Duration time.Duration
}

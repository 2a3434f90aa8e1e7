package domain

import (
	"strconv"
	"time"
)

// Document represents a unit of ingested content.
// It is the canonical representation after normalisation and is immutable
// once ingested; re-ingesting the same ID supersedes the prior version.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, s3://bucket/key, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// ContentType is the MIME type the content was normalised from.
	ContentType string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was received.
	CreatedAt time.Time
}

// Chunk is a contiguous span of a document's text.
// Start and End are byte offsets into Document.Content; Text equals
// Content[Start:End].
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document, starting at 0.
	Index int

	// Text is the chunk content.
	Text string

	// Start is the byte offset of the first character.
	Start int

	// End is the byte offset one past the last character.
	End int
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Overlap returns how many bytes this chunk shares with prev.
func (c Chunk) Overlap(prev Chunk) int {
	if prev.End <= c.Start {
		return 0
	}
	return prev.End - c.Start
}

// RecordID returns the index record identifier for a document's chunk.
func RecordID(documentID string, chunkIndex int) string {
	return documentID + "_" + strconv.Itoa(chunkIndex)
}

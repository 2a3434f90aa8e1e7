package domain

// IndexRecord is a chunk together with its embedding, as persisted in a
// vector store.
type IndexRecord struct {
	// ID is the record identifier, see RecordID.
	ID string

	// DocumentID links to the source document.
	DocumentID string

	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int

	// Text is the chunk content.
	Text string

	// Start and End are the chunk's byte offsets in the document.
	Start int
	End   int

	// Vector is the chunk embedding.
	Vector []float32
}

// NewIndexRecord builds the record for an embedded chunk.
func NewIndexRecord(c Chunk, v EmbeddingVector) IndexRecord {
	return IndexRecord{
		ID:         RecordID(c.DocumentID, c.Index),
		DocumentID: c.DocumentID,
		ChunkIndex: c.Index,
		Text:       c.Text,
		Start:      c.Start,
		End:        c.End,
		Vector:     v.Values,
	}
}

// UpsertOutcome is the result of writing one record in a batch.
type UpsertOutcome struct {
	RecordID string
	Err      error
}

// CollectionStats describes the active vector collection.
type CollectionStats struct {
	// Name is the collection, table or file backing the store.
	Name string

	// Records is the number of stored records.
	Records int

	// Documents is the number of distinct documents, when known.
	Documents int

	// Dimensions is the collection dimensionality; zero until established.
	Dimensions int
}

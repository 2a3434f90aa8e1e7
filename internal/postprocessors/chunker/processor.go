// Package chunker provides a sentence-aware sliding window chunker.
package chunker

import (
	"iter"
	"unicode/utf8"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Name is the registry name of this chunker.
const Name = "sentence-window"

// DefaultChunkSize is the default maximum chunk length in bytes.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping bytes.
const DefaultChunkOverlap = 100

// DefaultMinTail is the smallest unique content a final chunk may carry.
const DefaultMinTail = 20

// DefaultLookback is the fraction of the window searched for a boundary.
const DefaultLookback = 0.1

// Verify interface compliance.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits document content into overlapping windows.
// Cuts prefer a sentence end, then whitespace, near the end of each window.
type Processor struct {
	maxChars int
	overlap  int
	minTail  int
	lookback float64
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the maximum chunk length in bytes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.maxChars = size
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithMinTail sets the minimum unique content of the final chunk.
func WithMinTail(n int) Option {
	return func(p *Processor) {
		p.minTail = n
	}
}

// WithLookback sets the fraction of the window, counted back from its end,
// that is searched for a sentence or word boundary.
func WithLookback(ratio float64) Option {
	return func(p *Processor) {
		p.lookback = ratio
	}
}

// New creates a new chunker processor with the given options.
// It returns a *domain.ConfigurationError for invalid parameters.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		maxChars: DefaultChunkSize,
		overlap:  DefaultChunkOverlap,
		minTail:  DefaultMinTail,
		lookback: DefaultLookback,
	}

	for _, opt := range opts {
		opt(p)
	}

	settings := domain.ChunkSettings{MaxChars: p.maxChars, Overlap: p.overlap, MinTail: p.minTail}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if p.lookback < 0 || p.lookback > 1 {
		return nil, &domain.ConfigurationError{Field: "chunker.lookback", Reason: "must be in [0, 1]"}
	}

	return p, nil
}

// Split chunks text with the default tail and lookback settings.
func Split(text string, maxChars, overlap int) (iter.Seq[domain.Chunk], error) {
	p, err := New(WithChunkSize(maxChars), WithOverlap(overlap), WithMinTail(min(DefaultMinTail, maxChars-1)))
	if err != nil {
		return nil, err
	}
	return p.split("", text), nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Chunks returns a lazy sequence over the document's chunks.
func (p *Processor) Chunks(doc domain.Document) iter.Seq[domain.Chunk] {
	return p.split(doc.ID, doc.Content)
}

func (p *Processor) split(docID, text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		n := len(text)
		start, index := 0, 0

		for start < n {
			if n-start <= p.maxChars {
				yield(p.chunk(docID, text, index, start, n))
				return
			}

			end := p.cut(text, start)
			next := p.nextStart(text, start, end)

			// Pull the cut back when the final chunk would be a sliver.
			if n-next <= p.maxChars && n-end < p.minTail && p.minTail+p.overlap+utf8.UTFMax <= p.maxChars {
				end = floorRune(text, n-p.minTail, start)
				next = p.nextStart(text, start, end)
			}

			if !yield(p.chunk(docID, text, index, start, end)) {
				return
			}
			index++
			start = next
		}
	}
}

func (p *Processor) chunk(docID, text string, index, start, end int) domain.Chunk {
	return domain.Chunk{
		DocumentID: docID,
		Index:      index,
		Text:       text[start:end],
		Start:      start,
		End:        end,
	}
}

// cut returns the end of the window starting at start. The caller
// guarantees the text extends beyond start+maxChars.
func (p *Processor) cut(text string, start int) int {
	limit := start + p.maxChars

	lo := limit - int(float64(p.maxChars)*p.lookback)
	if floor := start + p.overlap + 1; lo < floor {
		lo = floor
	}

	for i := limit - 1; i >= lo; i-- {
		if isSentenceEnd(text[i]) && isSpace(text[i+1]) {
			return i + 1
		}
	}

	if isSpace(text[limit]) && limit > start+p.overlap {
		return limit
	}
	for i := limit - 1; i >= lo; i-- {
		if isSpace(text[i]) {
			return i + 1
		}
	}

	end := floorRune(text, limit, start)
	if end == start {
		// No rune start inside the window: invalid UTF-8.
		end = limit
	}
	return end
}

// nextStart returns where the chunk after [start, end) begins. The overlap
// is capped so the following window can always reach past end, and the
// result never falls below start.
func (p *Processor) nextStart(text string, start, end int) int {
	overlap := min(p.overlap, p.maxChars-utf8.UTFMax)
	next := max(end-overlap, start)
	for next < end && !utf8.RuneStart(text[next]) {
		next++
	}
	if next <= start {
		return end
	}
	return next
}

// floorRune moves i back to the nearest rune start, not below lo.
func floorRune(text string, i, lo int) int {
	for i > lo && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

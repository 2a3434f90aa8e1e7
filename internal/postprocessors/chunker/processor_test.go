package chunker

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func collect(t *testing.T, text string, opts ...Option) []domain.Chunk {
	t.Helper()
	p, err := New(opts...)
	require.NoError(t, err)
	return slices.Collect(p.Chunks(domain.Document{ID: "doc", Content: text}))
}

// reconstruct rebuilds the text by dropping each chunk's overlap with its predecessor.
func reconstruct(chunks []domain.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c.Text)
			continue
		}
		sb.WriteString(c.Text[c.Overlap(chunks[i-1]):])
	}
	return sb.String()
}

func assertChunkInvariants(t *testing.T, text string, chunks []domain.Chunk, maxChars, overlap int) {
	t.Helper()
	assert.Equal(t, text, reconstruct(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, text[c.Start:c.End], c.Text)
		assert.LessOrEqual(t, c.Len(), maxChars, "chunk %d exceeds max", i)
		assert.True(t, utf8.ValidString(c.Text), "chunk %d splits a rune", i)
		if i > 0 {
			prev := chunks[i-1]
			assert.Greater(t, c.Start, prev.Start, "chunk %d does not advance", i)
			assert.Greater(t, c.End, prev.End, "chunk %d repeats its predecessor", i)
			assert.LessOrEqual(t, c.Overlap(prev), overlap, "chunk %d overlaps too much", i)
		}
	}
	if len(chunks) > 0 {
		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len(text), chunks[len(chunks)-1].End)
	}
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p, err := New()
		require.NoError(t, err)
		assert.Equal(t, DefaultChunkSize, p.maxChars)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
		assert.Equal(t, DefaultMinTail, p.minTail)
		assert.InDelta(t, DefaultLookback, p.lookback, 1e-9)
	})

	t.Run("custom values", func(t *testing.T) {
		p, err := New(WithChunkSize(500), WithOverlap(50), WithMinTail(10), WithLookback(0.2))
		require.NoError(t, err)
		assert.Equal(t, 500, p.maxChars)
		assert.Equal(t, 50, p.overlap)
		assert.Equal(t, 10, p.minTail)
	})

	invalid := []struct {
		name string
		opts []Option
	}{
		{"zero chunk size", []Option{WithChunkSize(0)}},
		{"negative chunk size", []Option{WithChunkSize(-10)}},
		{"overlap equals chunk size", []Option{WithChunkSize(100), WithOverlap(100), WithMinTail(0)}},
		{"overlap exceeds chunk size", []Option{WithChunkSize(100), WithOverlap(150), WithMinTail(0)}},
		{"negative overlap", []Option{WithOverlap(-1)}},
		{"chunk size below rune width", []Option{WithChunkSize(utf8.UTFMax - 1), WithOverlap(0), WithMinTail(0)}},
		{"lookback above one", []Option{WithLookback(1.5)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts...)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))

			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestSplit_InvalidParameters(t *testing.T) {
	seq, err := Split("text", 10, 10)
	assert.Nil(t, seq)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = Split("text", 0, 0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestProcessor_Name(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	assert.Equal(t, "sentence-window", p.Name())
}

func TestChunks_EmptyText(t *testing.T) {
	assert.Empty(t, collect(t, ""))
}

func TestChunks_ShorterThanMax(t *testing.T) {
	chunks := collect(t, "A short note.", WithChunkSize(100), WithOverlap(20))

	require.Len(t, chunks, 1)
	assert.Equal(t, "A short note.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 13, chunks[0].End)
	assert.Equal(t, "doc", chunks[0].DocumentID)
}

func TestChunks_ExactlyMax(t *testing.T) {
	text := strings.Repeat("x", 100)
	chunks := collect(t, text, WithChunkSize(100), WithOverlap(20))

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunks_FixedWindows(t *testing.T) {
	text := strings.Repeat("a", 500)

	seq, err := Split(text, 200, 20)
	require.NoError(t, err)
	chunks := slices.Collect(seq)

	require.Len(t, chunks, 3)
	assert.Equal(t, [2]int{0, 200}, [2]int{chunks[0].Start, chunks[0].End})
	assert.Equal(t, [2]int{180, 380}, [2]int{chunks[1].Start, chunks[1].End})
	assert.Equal(t, [2]int{360, 500}, [2]int{chunks[2].Start, chunks[2].End})
	assert.Equal(t, 20, chunks[1].Overlap(chunks[0]))
	assert.Equal(t, 20, chunks[2].Overlap(chunks[1]))
	assertChunkInvariants(t, text, chunks, 200, 20)
}

func TestChunks_PrefersSentenceBoundary(t *testing.T) {
	first := strings.Repeat("w", 90) + ". "
	text := first + strings.Repeat("z", 60)

	chunks := collect(t, text, WithChunkSize(100), WithOverlap(10), WithLookback(0.2))

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 91, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."))
	assertChunkInvariants(t, text, chunks, 100, 10)
}

func TestChunks_FallsBackToWhitespace(t *testing.T) {
	text := strings.Repeat("w", 93) + " " + strings.Repeat("z", 60)

	chunks := collect(t, text, WithChunkSize(100), WithOverlap(10))

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 94, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, " "))
	assertChunkInvariants(t, text, chunks, 100, 10)
}

func TestChunks_HardCutOutsideLookback(t *testing.T) {
	text := "Intro. " + strings.Repeat("q", 200)

	chunks := collect(t, text, WithChunkSize(100), WithOverlap(10))

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 100, chunks[0].End)
	assertChunkInvariants(t, text, chunks, 100, 10)
}

func TestChunks_TinyTailIsFolded(t *testing.T) {
	text := strings.Repeat("a", 390)

	chunks := collect(t, text, WithChunkSize(200), WithOverlap(20), WithMinTail(20))

	require.Len(t, chunks, 3)
	last := chunks[len(chunks)-1]
	unique := last.Len() - last.Overlap(chunks[len(chunks)-2])
	assert.GreaterOrEqual(t, unique, 20)
	assertChunkInvariants(t, text, chunks, 200, 20)
}

func TestChunks_MultibyteNeverSplit(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 40) + strings.Repeat("日本語", 50)

	chunks := collect(t, text, WithChunkSize(64), WithOverlap(8))

	assertChunkInvariants(t, text, chunks, 64, 8)
}

func TestChunks_ProseInvariants(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs! "
	text := strings.Repeat(sentence, 30)

	for _, tc := range []struct{ max, overlap int }{
		{50, 0}, {100, 10}, {120, 40}, {333, 33}, {1000, 100},
	} {
		chunks := collect(t, text, WithChunkSize(tc.max), WithOverlap(tc.overlap), WithMinTail(min(20, tc.max/4)))
		assertChunkInvariants(t, text, chunks, tc.max, tc.overlap)
	}
}

func TestChunks_RestartableAndStoppable(t *testing.T) {
	p, err := New(WithChunkSize(50), WithOverlap(5))
	require.NoError(t, err)
	doc := domain.Document{ID: "doc", Content: strings.Repeat("lorem ipsum ", 40)}
	seq := p.Chunks(doc)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestChunks_HighOverlapMultibyte(t *testing.T) {
	texts := []string{
		"日本",
		strings.Repeat("日本語", 20),
		"ab" + strings.Repeat("日本", 15),
		strings.Repeat("héllo 世界. ", 12),
		"a🙂b🙂c🙂d🙂e🙂f🙂",
	}

	for maxChars := utf8.UTFMax; maxChars <= 12; maxChars++ {
		for _, delta := range []int{1, 2, 3} {
			overlap := maxChars - delta
			for _, text := range texts {
				seq, err := Split(text, maxChars, overlap)
				require.NoError(t, err)

				var chunks []domain.Chunk
				require.NotPanics(t, func() { chunks = slices.Collect(seq) },
					"max=%d overlap=%d text=%q", maxChars, overlap, text)
				assertChunkInvariants(t, text, chunks, maxChars, overlap)
			}
		}
	}
}

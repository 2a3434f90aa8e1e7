package domain

import (
	"fmt"
	"strings"
)

// DefaultTopK is the hit limit applied when QueryOptions.TopK is not positive.
const DefaultTopK = 5

// QueryOptions configures a similarity query.
type QueryOptions struct {
	// TopK is the maximum number of hits. Zero or less means DefaultTopK.
	TopK int

	// MinScore is an optional similarity floor. Hits scoring below it are dropped.
	MinScore *float64
}

// Admits reports whether score passes the similarity floor.
func (o QueryOptions) Admits(score float64) bool {
	return o.MinScore == nil || score >= *o.MinScore
}

// Limit returns the effective hit limit.
func (o QueryOptions) Limit() int {
	if o.TopK <= 0 {
		return DefaultTopK
	}
	return o.TopK
}

// Float64 returns a pointer to v, for optional settings such as MinScore.
func Float64(v float64) *float64 {
	return &v
}

// RetrievalHit is a stored chunk returned for a query.
type RetrievalHit struct {
	// Record is the matched index record. Its vector may be omitted.
	Record IndexRecord

	// Score is the cosine similarity to the query; higher is more similar.
	Score float64

	// Rank is the 1-based position after ranking. Zero until assigned.
	Rank int
}

// ContextBundle is the ordered set of hits assembled for a question.
type ContextBundle struct {
	// Question is the original question text.
	Question string

	// Hits are ordered by rank.
	Hits []RetrievalHit

	// Truncated reports whether hits were dropped to fit the context limit.
	Truncated bool
}

// Empty reports whether no documents were found for the question.
// A truncated bundle had matches and is never empty.
func (b *ContextBundle) Empty() bool {
	return b == nil || (len(b.Hits) == 0 && !b.Truncated)
}

// Chars returns the total text length of all hits in bytes.
func (b *ContextBundle) Chars() int {
	n := 0
	for _, h := range b.Hits {
		n += len(h.Record.Text)
	}
	return n
}

// Text renders the bundle as numbered passages for an answer generator.
func (b *ContextBundle) Text() string {
	if b.Empty() {
		return ""
	}
	var sb strings.Builder
	for i, h := range b.Hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s (score %.3f)\n%s", h.Rank, h.Record.DocumentID, h.Score, h.Record.Text)
	}
	return sb.String()
}

// Package storage holds helpers shared by the vector store adapters.
package storage

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank sorts hits by descending score, ties by ascending record ID, drops
// hits below the floor and keeps at most opts.Limit().
func Rank(hits []domain.RetrievalHit, opts domain.QueryOptions) []domain.RetrievalHit {
	hits = slices.DeleteFunc(hits, func(h domain.RetrievalHit) bool { return !opts.Admits(h.Score) })
	slices.SortFunc(hits, func(a, b domain.RetrievalHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Record.ID, b.Record.ID)
	})
	if limit := opts.Limit(); len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// ValidateRecord checks the fields every store requires.
func ValidateRecord(r domain.IndexRecord) error {
	if r.ID == "" {
		return fmt.Errorf("record id is empty: %w", domain.ErrInvalidInput)
	}
	if r.DocumentID == "" {
		return fmt.Errorf("record %s has no document id: %w", r.ID, domain.ErrInvalidInput)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("record %s has no vector: %w", r.ID, domain.ErrInvalidInput)
	}
	return nil
}

// DimensionGuard enforces one dimensionality per collection. A zero
// starting value is fixed by the first vector checked.
type DimensionGuard struct {
	mu   sync.Mutex
	dims int
}

// NewDimensionGuard creates a guard fixed at dims, or unfixed when zero.
func NewDimensionGuard(dims int) *DimensionGuard {
	return &DimensionGuard{dims: dims}
}

// Dimensions returns the fixed dimensionality, 0 while unfixed.
func (g *DimensionGuard) Dimensions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dims
}

// Check accepts n when it matches, fixing the dimensionality on first use.
// It reports whether this call fixed it.
func (g *DimensionGuard) Check(n int) (established bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dims == 0 {
		g.dims = n
		return true, nil
	}
	if g.dims != n {
		return false, DimensionError(n, g.dims)
	}
	return false, nil
}

// DimensionError reports a vector of the wrong length.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: vector has %d dimensions, collection has %d", domain.ErrDimensionMismatch, got, want)
}

// Reset unfixes the dimensionality when established is true. Stores call
// it when the write that fixed it fails.
func (g *DimensionGuard) Reset(established bool) {
	if !established {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dims = 0
}

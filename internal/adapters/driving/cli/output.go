package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// styles holds the lipgloss styles used for terminal output. Colours are
// dropped automatically when output is not a terminal.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Score   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Passage lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Passage: lipgloss.NewStyle().PaddingLeft(6).Width(96),
	}
}

var style = newStyles()

func renderBundle(w io.Writer, b *domain.ContextBundle) {
	if b.Empty() {
		fmt.Fprintln(w, style.Muted.Render("No relevant passages found."))
		return
	}

	fmt.Fprintln(w, style.Title.Render("Context for: "+b.Question))
	fmt.Fprintln(w)
	for _, h := range b.Hits {
		fmt.Fprintf(w, "  [%d] %s %s\n",
			h.Rank,
			h.Record.DocumentID+style.Muted.Render(fmt.Sprintf("#%d", h.Record.ChunkIndex)),
			style.Score.Render(fmt.Sprintf("(%.3f)", h.Score)))
		fmt.Fprintln(w, style.Passage.Render(strings.TrimSpace(h.Record.Text)))
		fmt.Fprintln(w)
	}
	if b.Truncated {
		fmt.Fprintln(w, style.Warning.Render("Some passages were dropped to fit the context limit."))
	}
}

func renderResult(w io.Writer, r *domain.IngestionResult, err error) {
	switch {
	case r == nil:
		fmt.Fprintf(w, "  %s %v\n", style.Error.Render("failed"), err)
	case r.Failed():
		fmt.Fprintf(w, "  %s %s at %s: %v\n", style.Error.Render("failed"), r.DocumentID, r.FailedStage, r.Err)
	case r.Partial():
		fmt.Fprintf(w, "  %s %s %d/%d chunks, failed %v\n",
			style.Warning.Render("partial"), r.DocumentID, r.ChunksIndexed, r.ChunksTotal, r.FailedChunkIndices)
	default:
		fmt.Fprintf(w, "  %s %s %d chunks %s\n",
			style.Success.Render("indexed"), r.DocumentID, r.ChunksIndexed, style.Muted.Render(r.Backend))
	}
}

func renderSyncReport(w io.Writer, target string, r *domain.SyncReport) {
	fmt.Fprintln(w, style.Title.Render("Ingested "+target))
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d  %s %d  %s %d\n",
		style.Label.Render("documents"), r.Documents,
		style.Label.Render("indexed"), r.Indexed,
		style.Label.Render("partial"), r.Partial,
		style.Label.Render("failed"), r.Failed,
		style.Label.Render("chunks"), r.Chunks)
	fmt.Fprintln(w, style.Muted.Render("  took "+r.Duration.Round(time.Millisecond).String()))
	for _, err := range r.Errors {
		fmt.Fprintf(w, "  %s %v\n", style.Error.Render("error"), err)
	}
}

func renderHealth(w io.Writer, statuses []driving.ComponentStatus) {
	fmt.Fprintln(w, style.Title.Render("Health"))
	for _, s := range statuses {
		state := style.Success.Render("ok")
		detail := style.Muted.Render(s.Latency.Round(time.Millisecond).String())
		if !s.Healthy() {
			state = style.Error.Render("fail")
			detail = s.Err.Error()
		}
		fmt.Fprintf(w, "  %-4s %-9s %s %s\n", state, s.Kind, s.Name, detail)
	}
}

func renderStats(w io.Writer, s domain.CollectionStats) {
	fmt.Fprintln(w, style.Title.Render("Collection "+s.Name))
	fmt.Fprintf(w, "  %s %d\n", style.Label.Render("records:   "), s.Records)
	if s.Documents > 0 || s.Records == 0 {
		fmt.Fprintf(w, "  %s %d\n", style.Label.Render("documents: "), s.Documents)
	}
	dims := "not established"
	if s.Dimensions > 0 {
		dims = fmt.Sprint(s.Dimensions)
	}
	fmt.Fprintf(w, "  %s %s\n", style.Label.Render("dimensions:"), dims)
}

func renderSettings(w io.Writer, path string, s domain.Settings) {
	fmt.Fprintln(w, style.Title.Render("Settings"))
	fmt.Fprintln(w, style.Muted.Render("  "+path))
	fmt.Fprintln(w)

	fmt.Fprintln(w, style.Label.Render("[chunker]"))
	fmt.Fprintf(w, "  strategy: %s  max_chars: %d  overlap: %d  min_tail: %d\n",
		s.Chunker.Strategy, s.Chunker.MaxChars, s.Chunker.Overlap, s.Chunker.MinTail)

	fmt.Fprintln(w, style.Label.Render("[embedding]"))
	for i, b := range s.Embedding.Backends {
		key := ""
		if b.APIKeyEnv != "" {
			key = " key: $" + b.APIKeyEnv
			if b.APIKey == "" {
				key += style.Warning.Render(" (not set)")
			}
		}
		fmt.Fprintf(w, "  %d. %s %s (%d dims, batch %d)%s\n", i+1, b.Type, b.Model, b.Dimensions, b.BatchSize, key)
	}

	fmt.Fprintln(w, style.Label.Render("[vector_store]"))
	fmt.Fprintf(w, "  type: %s  collection: %s\n", s.VectorStore.Type, s.VectorStore.Collection)

	fmt.Fprintln(w, style.Label.Render("[metrics]"))
	fmt.Fprintf(w, "  type: %s\n", s.Metrics.Type)
}

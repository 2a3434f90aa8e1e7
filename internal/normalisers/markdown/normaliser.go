// Package markdown normalises Markdown into readable plain text.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips Markdown syntax. Code block contents are kept; fences
// and inline markers are removed. The title is the first H1 heading when
// present.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	src := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")

	title := heading(src)
	if title == "" {
		title = normalisers.Title(raw)
	}
	return normalisers.NewDocument(raw, title, Strip(src), "markdown"), nil
}

var (
	frontMatter = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	fences      = regexp.MustCompile("(?m)^\\s*(```|~~~).*$")
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	images      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headings    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasis    = regexp.MustCompile(`(\*\*|__|\*|~~)([^*_~\n]+)(\*\*|__|\*|~~)`)
	blockquotes = regexp.MustCompile(`(?m)^>\s?`)
	rules       = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	bullets     = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	numbered    = regexp.MustCompile(`(?m)^(\s*)\d+[.)]\s+`)
	newlines    = regexp.MustCompile(`\n{3,}`)
)

// Strip converts Markdown to plain text.
func Strip(src string) string {
	out := frontMatter.ReplaceAllString(src, "")
	out = fences.ReplaceAllString(out, "")
	out = inlineCode.ReplaceAllString(out, "$1")
	out = images.ReplaceAllString(out, "$1")
	out = links.ReplaceAllString(out, "$1")
	out = headings.ReplaceAllString(out, "")
	out = emphasis.ReplaceAllString(out, "$2")
	out = blockquotes.ReplaceAllString(out, "")
	out = rules.ReplaceAllString(out, "")
	out = bullets.ReplaceAllString(out, "$1")
	out = numbered.ReplaceAllString(out, "$1")
	out = newlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func heading(src string) string {
	for line := range strings.Lines(src) {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// Package html normalises HTML pages into readable plain text.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips tags, scripts and styles and decodes entities.
// The title comes from the <title> element when present.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	src := string(raw.Content)

	title := pageTitle(src)
	if title == "" {
		title = normalisers.Title(raw)
	}
	return normalisers.NewDocument(raw, title, Strip(src), "html"), nil
}

var (
	titleTag  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropped   = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|template)\b[^>]*>.*?</(script|style|noscript|head|svg|template)>`)
	comments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|ul|ol|tr|table|blockquote|pre|section|article|header|footer|nav|main)\b[^>]*>`)
	breakTags = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	cellTags  = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag    = regexp.MustCompile(`<[^>]+>`)
	spaces    = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// Strip converts HTML to text with one block element per line.
func Strip(src string) string {
	out := dropped.ReplaceAllString(src, "")
	out = comments.ReplaceAllString(out, "")
	out = blockTags.ReplaceAllString(out, "\n")
	out = breakTags.ReplaceAllString(out, "\n")
	out = cellTags.ReplaceAllString(out, " ")
	out = anyTag.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	out = spaces.ReplaceAllString(out, " ")

	var lines []string
	for line := range strings.Lines(out) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func pageTitle(src string) string {
	m := titleTag.FindStringSubmatch(src)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(m[1], "")))
}

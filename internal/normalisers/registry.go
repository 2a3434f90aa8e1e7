package normalisers

import (
	"context"
	"fmt"
	"maps"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// fallbackMIMEType is used for unknown text/* types.
const fallbackMIMEType = "text/plain"

// Registry dispatches raw documents by MIME type.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string][]driven.Normaliser)}
}

// Register adds a normaliser for each MIME type it supports.
// Higher priority normalisers are tried first.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range n.SupportedMIMETypes() {
		list := append(r.byMIME[mt], n)
		slices.SortStableFunc(list, func(a, b driven.Normaliser) int { return b.Priority() - a.Priority() })
		r.byMIME[mt] = list
	}
}

// SupportedMIMETypes returns every registered MIME type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byMIME))
}

// Normalise converts raw with the best matching normaliser. Parameters on
// the MIME type are ignored and unknown text/* types fall back to
// text/plain.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) lookup(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	base := mimeType
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		base = mt
	}
	base = strings.ToLower(strings.TrimSpace(base))

	if list := r.byMIME[base]; len(list) > 0 {
		return list[0]
	}
	if strings.HasPrefix(base, "text/") {
		if list := r.byMIME[fallbackMIMEType]; len(list) > 0 {
			return list[0]
		}
	}
	return nil
}

// NewDocument builds a document from raw with the given title and text.
// Source metadata is copied and the MIME type and format are recorded.
func NewDocument(raw *domain.RawDocument, title, content, format string) *domain.Document {
	metadata := make(map[string]any, len(raw.Metadata)+2)
	maps.Copy(metadata, raw.Metadata)
	metadata["mime_type"] = raw.MIMEType
	if format != "" {
		metadata["format"] = format
	}
	return &domain.Document{
		ID:          raw.DocumentID(),
		URI:         raw.URI,
		Title:       title,
		Content:     content,
		ContentType: raw.MIMEType,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
}

// Title returns the "title" metadata entry, or a readable name derived
// from the URI.
func Title(raw *domain.RawDocument) string {
	if t, ok := raw.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return TitleFromURI(raw.URI)
}

// TitleFromURI strips the directory and extension from uri and turns
// separators into spaces.
func TitleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

// DetectMIMEType guesses a MIME type from a file name. Unknown extensions
// yield "application/octet-stream".
func DetectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}
	return "application/octet-stream"
}

// extensionTypes covers extensions the system MIME table often lacks.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".sql":      "text/x-sql",
	".sh":       "text/x-shellscript",
}

package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

func TestNormaliser_Metadata(t *testing.T) {
	n := New()
	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, n.SupportedMIMETypes())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		ID:       "guide",
		URI:      "/docs/guide.html",
		MIMEType: "text/html",
		Content: []byte(`<html><head><title>Setup &amp; Use</title><style>p{}</style></head>
<body><script>alert(1)</script><h1>Intro</h1><p>Hello&nbsp;<b>World</b></p><!-- hidden --></body></html>`),
		Metadata: map[string]any{"bucket": "docs"},
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "guide", doc.ID)
	assert.Equal(t, "Setup & Use", doc.Title)
	assert.Equal(t, "Intro\nHello World", doc.Content)
	assert.Equal(t, "html", doc.Metadata["format"])
	assert.Equal(t, "docs", doc.Metadata["bucket"])
	assert.Equal(t, "text/html", doc.ContentType)
}

func TestNormalise_TitleFallsBackToURI(t *testing.T) {
	raw := &domain.RawDocument{URI: "/docs/release-notes.html", Content: []byte("<p>x</p>")}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "release notes", doc.Title)
}

func TestNormalise_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"line breaks", "a<br/>b<hr>c", "a\nb\nc"},
		{"table cells", "<table><tr><td>a</td><td>b</td></tr></table>", "a b"},
		{"entities", "&lt;tag&gt; &quot;q&quot;", `<tag> "q"`},
		{"empty", "", ""},
		{"list", "<ul><li>one</li><li>two</li></ul>", "one\ntwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Strip(tt.input))
		})
	}
}

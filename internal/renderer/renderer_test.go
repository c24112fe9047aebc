package renderer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapEmpty(t *testing.T) {
	doc := Wrap("", "")

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `<meta charset="UTF-8" />`)
	assert.Contains(t, doc, `<meta name="viewport" content="width=device-width, initial-scale=1.0" />`)
	assert.Contains(t, doc, "<title>Preview</title>")
	assert.Contains(t, doc, "<style></style>")
	assert.Contains(t, doc, "<body>")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(doc), "</html>"))
}

func TestWrapContainsInputsVerbatim(t *testing.T) {
	body := `<div class="text-red-500" onclick="a('%s')">Hi &amp; bye</div>`
	css := `.text-red-500{color:red}/* 100% */`

	doc := Wrap(body, css)

	assert.Contains(t, doc, body)
	assert.Contains(t, doc, "<style>"+css+"</style>")

	style, ok := StyleBlock(doc)
	require.True(t, ok)
	assert.Equal(t, css, style)
}

func TestWrapDistinctInputs(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"a", ""},
		{"", "a"},
		{"<p>x</p>", ".x{}"},
		{"<p>x</p>", ".y{}"},
		{"<p>y</p>", ".x{}"},
	}

	seen := make(map[string][2]string)
	for _, p := range pairs {
		doc := Wrap(p[0], p[1])
		prev, dup := seen[doc]
		assert.False(t, dup, "%v collides with %v", p, prev)
		seen[doc] = p
	}
}

func TestWrapIsNotIdempotent(t *testing.T) {
	once := Wrap("<p>x</p>", ".x{}")
	twice := Wrap(once, ".x{}")

	// Re-wrapping nests the previous document inside the new body.
	assert.NotEqual(t, once, twice)
	assert.Equal(t, 2, strings.Count(twice, "<!DOCTYPE html>"))
}

func TestStyleBlockRejectsForeignDocuments(t *testing.T) {
	_, ok := StyleBlock("<html><style>x</style></html>")
	assert.False(t, ok)
}

func TestDocumentComponent(t *testing.T) {
	var buf bytes.Buffer
	err := Document("<p>x</p>", ".x{}").Render(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, Wrap("<p>x</p>", ".x{}"), buf.String())
}

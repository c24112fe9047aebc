// Package renderer assembles the previewable document from a sanitized
// body fragment and a compiled stylesheet.
//
// Wrap is plain string templating with no escaping: the body is inserted
// verbatim and the stylesheet is inlined inside a single <style> block.
// Re-wrapping the output of Wrap nests a full document inside another body;
// nothing here extracts markup from an already wrapped document.
package renderer

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	docHead = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Preview</title>
    <style>`
	docMid = `</style>
  </head>
  <body>
`
	docTail = `
  </body>
</html>
`
)

// Wrap returns the full preview document for sanitizedBody styled by
// compiledCSS. Any strings, including empty ones, produce a valid document.
func Wrap(sanitizedBody, compiledCSS string) string {
	var b strings.Builder
	b.Grow(len(docHead) + len(compiledCSS) + len(docMid) + len(sanitizedBody) + len(docTail))
	b.WriteString(docHead)
	b.WriteString(compiledCSS)
	b.WriteString(docMid)
	b.WriteString(sanitizedBody)
	b.WriteString(docTail)
	return b.String()
}

// Document exposes Wrap as a templ component for HTTP handlers.
func Document(sanitizedBody, compiledCSS string) templ.Component {
	return Raw(Wrap(sanitizedBody, compiledCSS))
}

// Raw writes an already assembled document unchanged.
func Raw(document string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, document)
		return err
	})
}

// StyleBlock returns the stylesheet inlined in a document produced by
// Wrap, and false when doc was not produced by Wrap.
func StyleBlock(doc string) (string, bool) {
	if !strings.HasPrefix(doc, docHead) {
		return "", false
	}
	rest := doc[len(docHead):]
	end := strings.Index(rest, docMid)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// Package preview renders the isolated frame that displays the compiled
// document.
//
// The document is loaded through the iframe srcdoc attribute under a
// sandbox that allows scripts but never same-origin access, so user
// scripts cannot reach the editor page. Each frame carries the preview
// generation; the editor page script recreates the iframe element when
// the generation changes and only swaps srcdoc otherwise.
package preview

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// SandboxPolicy is the iframe sandbox attribute value.
const SandboxPolicy = "allow-scripts"

// ContentSecurityPolicy sandboxes documents served directly to a
// browser tab with the same restrictions as the frame.
const ContentSecurityPolicy = "sandbox " + SandboxPolicy

// ContainerID is the element id of the frame container.
const ContainerID = "preview"

// FrameID returns the iframe element id for generation.
func FrameID(generation uint64) string {
	return "preview-frame-" + strconv.FormatUint(generation, 10)
}

// Frame renders the preview container: the loading bar when compiling and
// an iframe holding doc.
func Frame(doc string, generation uint64, compiling bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		status := "idle"
		if compiling {
			status = "compiling"
		}
		gen := strconv.FormatUint(generation, 10)

		if _, err := fmt.Fprintf(w,
			`<div id="%s" class="relative flex-1 bg-white" data-generation="%s" data-status="%s">`,
			ContainerID, gen, status); err != nil {
			return err
		}
		if err := LoadingBar(compiling).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<iframe id="%s" title="Preview" class="w-full h-full border-0" sandbox="%s" data-generation="%s" srcdoc="%s"></iframe></div>`,
			FrameID(generation), SandboxPolicy, gen, templ.EscapeString(doc)); err != nil {
			return err
		}
		return nil
	})
}

// LoadingBar renders the progress indicator. It is present but hidden
// while idle so the page script can toggle it.
func LoadingBar(visible bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hidden := ""
		if !visible {
			hidden = " hidden"
		}
		_, err := fmt.Fprintf(w,
			`<div id="loading-bar" class="absolute top-0 left-0 right-0 h-1 overflow-hidden bg-neutral-700%s" role="progressbar" aria-label="Compiling"><div class="h-full w-1/3 bg-sky-400 animate-pulse"></div></div>`,
			hidden)
		return err
	})
}

package editor

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/livepen/internal/errors"
)

// Tab selects which buffer the pane displays.
type Tab string

const (
	TabMarkup      Tab = "markup"
	TabStyleConfig Tab = "config"
)

// Editor languages reported for each tab.
const (
	LanguageHTML       = "html"
	LanguageJavaScript = "javascript"
)

var labelCaser = cases.Upper(language.Und)

// Tabs returns the tabs in display order.
func Tabs() []Tab {
	return []Tab{TabMarkup, TabStyleConfig}
}

// ParseTab accepts a tab name or one of its aliases.
func ParseTab(s string) (Tab, error) {
	switch s {
	case string(TabMarkup), "html":
		return TabMarkup, nil
	case string(TabStyleConfig), "css", "tailwind":
		return TabStyleConfig, nil
	}
	return "", errors.NewValidationError(errors.ErrCodeInvalidTab, fmt.Sprintf("unknown tab %q", s))
}

// Label is the text shown on the tab button.
func (t Tab) Label() string {
	if t == TabStyleConfig {
		return labelCaser.String("css")
	}
	return labelCaser.String(LanguageHTML)
}

// Language is the editor language mode for the tab.
func (t Tab) Language() string {
	if t == TabStyleConfig {
		return LanguageJavaScript
	}
	return LanguageHTML
}

// Pane holds the two text buffers and the active tab. It is not safe for
// concurrent use; the Controller owns it.
type Pane struct {
	markup      string
	styleConfig string
	active      Tab
}

// NewPane returns a pane showing the markup tab.
func NewPane(markup, styleConfig string) *Pane {
	return &Pane{markup: markup, styleConfig: styleConfig, active: TabMarkup}
}

// Active returns the displayed tab.
func (p *Pane) Active() Tab { return p.active }

// SetTab switches the displayed buffer. Buffers are untouched.
func (p *Pane) SetTab(t Tab) error {
	if t != TabMarkup && t != TabStyleConfig {
		return errors.NewValidationError(errors.ErrCodeInvalidTab, fmt.Sprintf("unknown tab %q", t))
	}
	p.active = t
	return nil
}

// Value returns the buffer of the active tab.
func (p *Pane) Value() string {
	if p.active == TabStyleConfig {
		return p.styleConfig
	}
	return p.markup
}

// Language returns the language mode of the active tab.
func (p *Pane) Language() string { return p.active.Language() }

// Edit replaces the active buffer and reports which buffer it wrote and
// whether the content changed.
func (p *Pane) Edit(value string) (Tab, bool) {
	if p.active == TabStyleConfig {
		return TabStyleConfig, p.SetStyleConfig(value)
	}
	return TabMarkup, p.SetMarkup(value)
}

// Markup returns the markup buffer.
func (p *Pane) Markup() string { return p.markup }

// StyleConfig returns the style config buffer.
func (p *Pane) StyleConfig() string { return p.styleConfig }

// SetMarkup replaces the markup buffer and reports whether it changed.
func (p *Pane) SetMarkup(value string) bool {
	changed := p.markup != value
	p.markup = value
	return changed
}

// SetStyleConfig replaces the style config buffer and reports whether it
// changed.
func (p *Pane) SetStyleConfig(value string) bool {
	changed := p.styleConfig != value
	p.styleConfig = value
	return changed
}

// Hints returns class completions for prefix.
func (p *Pane) Hints(prefix string) []string {
	return Hints(prefix, DefaultHintLimit)
}

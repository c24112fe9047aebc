package sanitizer

import (
	"slices"
	"sort"
	"strings"
)

// Policy is the allow-list a Sanitizer enforces. Tag and attribute names
// are lower-case. A Policy must not be mutated once handed to New.
type Policy struct {
	tags     map[string]bool
	attrs    map[string]bool
	urlAttrs map[string]bool
	// AllowDataAttrs keeps data-* attributes on allowed elements.
	AllowDataAttrs bool
	// AllowARIAAttrs keeps aria-* attributes on allowed elements.
	AllowARIAAttrs bool
}

// TrustedTags and TrustedAttrs are added on top of the safe defaults so
// that Tailwind demo markup with inline handlers survives sanitization.
var (
	TrustedTags  = []string{"script", "style", "link"}
	TrustedAttrs = []string{"onclick", "onload", "onerror", "class", "id", "href", "src"}
)

var defaultTags = []string{
	"a", "abbr", "address", "article", "aside", "audio", "b", "bdi", "bdo",
	"blockquote", "br", "button", "caption", "center", "cite", "code", "col",
	"colgroup", "data", "datalist", "dd", "del", "details", "dfn", "dialog",
	"div", "dl", "dt", "em", "fieldset", "figcaption", "figure", "footer",
	"form", "h1", "h2", "h3", "h4", "h5", "h6", "header", "hgroup", "hr", "i",
	"img", "input", "ins", "kbd", "label", "legend", "li", "main", "mark",
	"menu", "meter", "nav", "ol", "optgroup", "option", "output", "p",
	"picture", "pre", "progress", "q", "rp", "rt", "ruby", "s", "samp",
	"section", "select", "small", "source", "span", "strong", "sub",
	"summary", "sup", "table", "tbody", "td", "textarea", "tfoot", "th",
	"thead", "time", "tr", "track", "u", "ul", "var", "video", "wbr",
}

var defaultAttrs = []string{
	"accept", "action", "align", "alt", "autocomplete", "checked", "cite",
	"cols", "colspan", "controls", "datetime", "dir", "disabled", "download",
	"for", "height", "hidden", "lang", "loop", "max", "maxlength", "media",
	"method", "min", "multiple", "name", "open", "pattern", "placeholder",
	"poster", "readonly", "rel", "required", "reversed", "role", "rows",
	"rowspan", "scope", "selected", "size", "span", "srcset", "start", "step",
	"style", "tabindex", "target", "title", "type", "value", "width",
}

// Attributes whose value is a URL and gets a scheme check.
var defaultURLAttrs = []string{
	"action", "background", "cite", "formaction", "href", "poster", "src",
	"srcset",
}

// svgTags and svgAttrs cover inline icon markup such as heroicons.
var (
	svgTags  = []string{"svg", "g", "path", "circle", "ellipse", "rect", "line", "polyline", "polygon"}
	svgAttrs = []string{
		"viewbox", "d", "fill", "fill-rule", "clip-rule", "stroke", "stroke-width",
		"stroke-linecap", "stroke-linejoin", "xmlns", "cx", "cy", "r", "rx", "ry",
		"x", "y", "x1", "y1", "x2", "y2", "points", "transform",
	}
)

var ariaAttrs = []string{
	"aria-activedescendant", "aria-atomic", "aria-busy", "aria-checked",
	"aria-controls", "aria-current", "aria-describedby", "aria-description",
	"aria-details", "aria-disabled", "aria-expanded", "aria-haspopup",
	"aria-hidden", "aria-invalid", "aria-label", "aria-labelledby",
	"aria-level", "aria-live", "aria-modal", "aria-multiselectable",
	"aria-orientation", "aria-owns", "aria-placeholder", "aria-posinset",
	"aria-pressed", "aria-readonly", "aria-relevant", "aria-required",
	"aria-roledescription", "aria-selected", "aria-setsize", "aria-sort",
	"aria-valuemax", "aria-valuemin", "aria-valuenow", "aria-valuetext",
}

// skipContent lists containers removed together with their content when
// the element itself is not allowed.
var skipContent = []string{
	"applet", "frameset", "iframe", "math", "noembed", "noframes", "noscript",
	"object", "plaintext", "script", "style", "template", "textarea", "title",
	"xmp",
}

// voidElements never have an end tag, so they can only be removed on
// their own.
var voidElements = []string{
	"area", "base", "br", "col", "embed", "frame", "hr", "img", "input",
	"keygen", "link", "meta", "param", "source", "track", "wbr",
}

// DefaultPolicy returns the safe baseline: common content elements, inline
// SVG icons and presentational attributes, no scripts and no event
// handlers.
func DefaultPolicy() *Policy {
	p := &Policy{
		tags:           make(map[string]bool),
		attrs:          make(map[string]bool),
		urlAttrs:       make(map[string]bool),
		AllowDataAttrs: true,
		AllowARIAAttrs: true,
	}
	p.AddTags(defaultTags...)
	p.AddTags(svgTags...)
	p.AddAttrs(defaultAttrs...)
	p.AddAttrs(svgAttrs...)
	for _, a := range defaultURLAttrs {
		p.urlAttrs[a] = true
	}
	return p
}

// TrustedPolicy is DefaultPolicy plus TrustedTags and TrustedAttrs.
func TrustedPolicy() *Policy {
	p := DefaultPolicy()
	p.AddTags(TrustedTags...)
	p.AddAttrs(TrustedAttrs...)
	return p
}

// AddTags allows additional elements.
func (p *Policy) AddTags(tags ...string) *Policy {
	for _, t := range tags {
		p.tags[strings.ToLower(t)] = true
	}
	return p
}

// AddAttrs allows additional attributes on every allowed element.
func (p *Policy) AddAttrs(attrs ...string) *Policy {
	for _, a := range attrs {
		p.attrs[strings.ToLower(a)] = true
	}
	return p
}

// AllowsTag reports whether the element survives sanitization.
func (p *Policy) AllowsTag(tag string) bool {
	return p.tags[tag]
}

// AllowsAttr reports whether the attribute name survives sanitization.
func (p *Policy) AllowsAttr(attr string) bool {
	if p.attrs[attr] {
		return true
	}
	if p.AllowDataAttrs && strings.HasPrefix(attr, "data-") {
		return true
	}
	return p.AllowARIAAttrs && slices.Contains(ariaAttrs, attr)
}

// Tags returns the allowed element names, sorted.
func (p *Policy) Tags() []string {
	return sortedKeys(p.tags)
}

// Attrs returns the explicitly allowed attribute names, sorted.
func (p *Policy) Attrs() []string {
	return sortedKeys(p.attrs)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package sanitizer cleans user supplied HTML fragments before they are
// placed into the preview document.
//
// A Policy is compiled into a bluemonday policy once, in New. Elements
// outside the allow-list are removed while their text children are kept,
// except for containers such as iframe or object whose whole content is
// dropped. Void elements are removed on their own. Comments and doctypes
// are always removed. URL valued attributes carrying javascript:,
// vbscript: or non-image data: schemes are removed even when the
// attribute name is allowed. Allowed script and style bodies are written
// verbatim.
//
// Sanitization never fails: malformed markup produces best-effort output.
package sanitizer

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// safeURL matches URL attribute values without a scheme, with a scheme
// that cannot run script, or holding a raster image data URI.
var safeURL = regexp.MustCompile(
	`^(?i:\s*(?:https?|mailto|tel):|\s*data:image/(?:png|gif|jpe?g|webp)[;,]|[^:/?#]*(?:[/?#]|$))`,
)

// Sanitizer applies a fixed Policy. It is safe for concurrent use.
type Sanitizer struct {
	policy *Policy
	engine *bluemonday.Policy
}

// New returns a Sanitizer enforcing policy. A nil policy means
// TrustedPolicy.
func New(policy *Policy) *Sanitizer {
	if policy == nil {
		policy = TrustedPolicy()
	}
	return &Sanitizer{policy: policy, engine: compile(policy)}
}

func compile(p *Policy) *bluemonday.Policy {
	bm := bluemonday.NewPolicy()

	tags := p.Tags()
	bm.AllowElements(tags...)
	bm.AllowNoAttrs().OnElements(tags...)

	for _, attr := range p.Attrs() {
		if p.urlAttrs[attr] {
			bm.AllowAttrs(attr).Matching(safeURL).Globally()
			continue
		}
		bm.AllowAttrs(attr).Globally()
	}
	if p.AllowDataAttrs {
		bm.AllowDataAttributes()
	}
	if p.AllowARIAAttrs {
		bm.AllowAttrs(ariaAttrs...).Globally()
	}

	bm.RequireParseableURLs(true)
	bm.AllowRelativeURLs(true)
	bm.AllowURLSchemes("http", "https", "mailto", "tel")
	bm.AllowDataURIImages()

	bm.SkipElementsContent(skipContent...)
	bm.AllowElementsContent(voidElements...)

	// bluemonday refuses script and style elements unless unsafe mode is on.
	if p.AllowsTag("script") || p.AllowsTag("style") {
		bm.AllowUnsafe(true)
	}
	return bm
}

// Policy returns the policy the sanitizer enforces.
func (s *Sanitizer) Policy() *Policy {
	return s.policy
}

var trusted = New(nil)

// Sanitize cleans rawHTML with the trusted policy.
func Sanitize(rawHTML string) string {
	return trusted.Sanitize(rawHTML)
}

// Sanitize cleans rawHTML according to the sanitizer's policy.
func (s *Sanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.engine.Sanitize(rawHTML)
}

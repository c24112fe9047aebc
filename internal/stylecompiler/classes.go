package stylecompiler

import (
	"regexp"
	"strings"
)

var classAttrPattern = regexp.MustCompile(`class="([^"]*)"`)

// ExtractClasses returns every class name found in double-quoted class
// attributes of markup, in document order. Duplicates are kept; the
// compiler does not depend on order or uniqueness.
func ExtractClasses(markup string) []string {
	var classes []string
	for _, m := range classAttrPattern.FindAllStringSubmatch(markup, -1) {
		classes = append(classes, strings.Fields(m[1])...)
	}
	return classes
}

// Deduplicate removes repeated class names, keeping first occurrences.
func Deduplicate(classes []string) []string {
	seen := make(map[string]bool, len(classes))
	result := make([]string, 0, len(classes))
	for _, c := range classes {
		if !seen[c] {
			seen[c] = true
			result = append(result, c)
		}
	}
	return result
}

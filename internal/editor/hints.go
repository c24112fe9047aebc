package editor

import (
	"sort"
	"strings"
	"sync"
)

// DefaultHintLimit caps the completions returned by Pane.Hints.
const DefaultHintLimit = 50

var (
	spacingScale = []string{
		"0", "px", "0.5", "1", "1.5", "2", "2.5", "3", "3.5", "4", "5", "6", "7", "8",
		"9", "10", "11", "12", "14", "16", "20", "24", "28", "32", "36", "40", "44",
		"48", "52", "56", "60", "64", "72", "80", "96",
	}
	spacingPrefixes = []string{
		"p", "px", "py", "pt", "pr", "pb", "pl",
		"m", "mx", "my", "mt", "mr", "mb", "ml",
		"gap", "gap-x", "gap-y", "space-x", "space-y",
		"w", "h", "min-h", "max-w", "inset", "top", "right", "bottom", "left",
	}
	colorFamilies = []string{
		"slate", "gray", "zinc", "neutral", "stone", "red", "orange", "amber",
		"yellow", "lime", "green", "emerald", "teal", "cyan", "sky", "blue",
		"indigo", "violet", "purple", "fuchsia", "pink", "rose",
	}
	colorShades   = []string{"50", "100", "200", "300", "400", "500", "600", "700", "800", "900", "950"}
	colorPrefixes = []string{"text", "bg", "border", "ring", "from", "via", "to", "fill", "stroke", "divide", "outline"}

	fixedClasses = []string{
		"block", "inline", "inline-block", "flex", "inline-flex", "grid", "inline-grid",
		"hidden", "contents", "table",
		"flex-row", "flex-col", "flex-wrap", "flex-1", "flex-auto", "flex-none", "grow", "shrink-0",
		"items-start", "items-center", "items-end", "items-stretch",
		"justify-start", "justify-center", "justify-end", "justify-between", "justify-around",
		"grid-cols-1", "grid-cols-2", "grid-cols-3", "grid-cols-4", "grid-cols-6", "grid-cols-12",
		"static", "relative", "absolute", "fixed", "sticky",
		"w-full", "w-screen", "w-auto", "h-full", "h-screen", "min-h-screen",
		"max-w-sm", "max-w-md", "max-w-lg", "max-w-xl", "max-w-2xl", "max-w-4xl", "max-w-prose",
		"mx-auto", "my-auto",
		"text-xs", "text-sm", "text-base", "text-lg", "text-xl", "text-2xl", "text-3xl",
		"text-4xl", "text-5xl", "text-6xl",
		"text-left", "text-center", "text-right", "text-white", "text-black", "text-transparent",
		"bg-white", "bg-black", "bg-transparent",
		"font-thin", "font-light", "font-normal", "font-medium", "font-semibold", "font-bold",
		"font-extrabold", "font-sans", "font-serif", "font-mono",
		"italic", "underline", "line-through", "uppercase", "lowercase", "capitalize", "truncate",
		"leading-none", "leading-tight", "leading-normal", "leading-relaxed",
		"tracking-tight", "tracking-normal", "tracking-wide",
		"rounded", "rounded-none", "rounded-sm", "rounded-md", "rounded-lg", "rounded-xl",
		"rounded-2xl", "rounded-3xl", "rounded-full",
		"border", "border-0", "border-2", "border-4", "border-t", "border-b", "border-dashed",
		"shadow", "shadow-sm", "shadow-md", "shadow-lg", "shadow-xl", "shadow-2xl", "shadow-none",
		"opacity-0", "opacity-25", "opacity-50", "opacity-75", "opacity-100",
		"overflow-hidden", "overflow-auto", "overflow-scroll",
		"cursor-pointer", "cursor-default", "cursor-not-allowed", "select-none",
		"transition", "transition-all", "transition-colors", "transition-opacity", "transition-transform",
		"duration-75", "duration-150", "duration-200", "duration-300", "duration-500", "duration-700",
		"ease-in", "ease-out", "ease-in-out",
		"scale-95", "scale-100", "scale-105", "scale-110", "rotate-45", "rotate-90", "rotate-180",
		"blur", "blur-sm", "blur-lg", "backdrop-blur", "backdrop-blur-sm", "backdrop-blur-md",
		"backdrop-blur-lg", "backdrop-blur-xl",
		"bg-gradient-to-r", "bg-gradient-to-l", "bg-gradient-to-t", "bg-gradient-to-b",
		"bg-gradient-to-br", "bg-gradient-to-tr",
		"z-0", "z-10", "z-20", "z-30", "z-40", "z-50",
		"ring", "ring-0", "ring-1", "ring-2", "ring-4",
		"container", "sr-only", "animate-spin", "animate-pulse", "animate-bounce", "animate-ping",
	}
)

var (
	hintsOnce sync.Once
	hintIndex []string
)

// classDataset returns the sorted, de-duplicated completion dataset.
func classDataset() []string {
	hintsOnce.Do(func() {
		seen := make(map[string]bool)
		add := func(c string) {
			if !seen[c] {
				seen[c] = true
				hintIndex = append(hintIndex, c)
			}
		}
		for _, c := range fixedClasses {
			add(c)
		}
		for _, p := range spacingPrefixes {
			for _, s := range spacingScale {
				add(p + "-" + s)
			}
		}
		for _, p := range colorPrefixes {
			for _, fam := range colorFamilies {
				for _, shade := range colorShades {
					add(p + "-" + fam + "-" + shade)
				}
			}
		}
		sort.Strings(hintIndex)
	})
	return hintIndex
}

// Hints returns at most limit class names starting with prefix in
// lexical order. Variant prefixes such as "hover:" are preserved on the
// returned names. A limit <= 0 means no limit.
func Hints(prefix string, limit int) []string {
	variant := ""
	if i := strings.LastIndex(prefix, ":"); i >= 0 {
		variant, prefix = prefix[:i+1], prefix[i+1:]
	}

	dataset := classDataset()
	start := sort.SearchStrings(dataset, prefix)

	var result []string
	for _, c := range dataset[start:] {
		if !strings.HasPrefix(c, prefix) {
			break
		}
		result = append(result, variant+c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

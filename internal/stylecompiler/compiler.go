// Package stylecompiler adapts an external utility-class CSS compiler to
// the editor.
//
// A Compiler turns a configuration source plus the class names used by
// the markup into compiled CSS. The Tailwind CLI backed implementation is
// created by Init, which plays the role of the editor's initialization
// hook: until it returns a handle the editor renders unstyled markup.
package stylecompiler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/conneroisu/livepen/internal/logging"
)

// Engine names accepted by Init.
const (
	EngineTailwind = "tailwindcss"
	EngineNone     = "none"
)

// Result is the output of a successful compile.
type Result struct {
	CSS string `json:"css"`
}

// BuildOptions tune a single compile call.
type BuildOptions struct {
	Minify bool
}

// Compiler compiles class names against a configuration source. Calls
// may block for an unbounded time; ctx bounds them.
type Compiler interface {
	BuildCSS(ctx context.Context, configText string, classNames []string, opts BuildOptions) (*Result, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, configText string, classNames []string, opts BuildOptions) (*Result, error)

// BuildCSS calls f.
func (f CompilerFunc) BuildCSS(ctx context.Context, configText string, classNames []string, opts BuildOptions) (*Result, error) {
	return f(ctx, configText, classNames, opts)
}

// Static always returns the same stylesheet, or Err when set.
type Static struct {
	CSS string
	Err error
}

// BuildCSS returns the configured result.
func (s Static) BuildCSS(ctx context.Context, _ string, _ []string, _ BuildOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &Result{CSS: s.CSS}, nil
}

// Options configure Init.
type Options struct {
	Engine string
	// Binary overrides the tailwindcss executable lookup.
	Binary string
	// LanguageSelector lists the editor languages whose class names feed
	// the compiler. Empty means the default; otherwise it must include
	// html, the only buffer classes are extracted from.
	LanguageSelector []string
	Timeout          time.Duration
	MaxConcurrent    int
	// Probe runs the CLI once with --help before returning the handle.
	Probe   bool
	TempDir string
	Logger  logging.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Engine:           EngineTailwind,
		LanguageSelector: []string{"html", "css"},
		Timeout:          30 * time.Second,
		MaxConcurrent:    2,
		Probe:            true,
	}
}

// Init creates the compiler handle for opts.Engine. A nil Compiler with a
// nil error means compilation is disabled.
func Init(ctx context.Context, opts Options) (Compiler, error) {
	switch opts.Engine {
	case EngineNone:
		return nil, nil
	case "", EngineTailwind:
		if len(opts.LanguageSelector) > 0 && !slices.Contains(opts.LanguageSelector, "html") {
			return nil, fmt.Errorf("language selector %v must include html", opts.LanguageSelector)
		}
		cli, err := NewTailwindCLI(opts)
		if err != nil {
			return nil, err
		}
		if opts.Probe {
			if err := cli.Probe(ctx); err != nil {
				return nil, err
			}
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unknown style compiler engine %q", opts.Engine)
	}
}

package stylecompiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/validation"
)

const baseInputCSS = "@tailwind base;\n@tailwind components;\n@tailwind utilities;\n"

// TailwindCLI compiles styles by running the tailwindcss executable in a
// scratch directory per call.
type TailwindCLI struct {
	command []string
	timeout time.Duration
	tempDir string
	sem     chan struct{}
	logger  logging.Logger
}

// NewTailwindCLI locates the tailwindcss executable, falling back to
// npx when it is not on PATH.
func NewTailwindCLI(opts Options) (*TailwindCLI, error) {
	command, err := resolveCommand(opts.Binary)
	if err != nil {
		return nil, err
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &TailwindCLI{
		command: command,
		timeout: opts.Timeout,
		tempDir: opts.TempDir,
		sem:     make(chan struct{}, maxConcurrent),
		logger:  logger.WithComponent("stylecompiler"),
	}, nil
}

func resolveCommand(binary string) ([]string, error) {
	name := binary
	if name == "" {
		name = EngineTailwind
	}

	base := filepath.Base(name)
	allowed := map[string]bool{
		"npx": true,
		base:  strings.HasPrefix(base, EngineTailwind),
	}
	if err := validation.ValidateCommand(base, allowed); err != nil {
		return nil, errors.NewSecurityError(errors.ErrCodeCommandInjection, err.Error())
	}

	path, err := exec.LookPath(name)
	if err == nil {
		return []string{path}, nil
	}
	if binary != "" {
		return nil, errors.NewBuildError(errors.ErrCodeCompilerMissing,
			fmt.Sprintf("tailwindcss binary %q not found", binary), err)
	}

	npx, npxErr := exec.LookPath("npx")
	if npxErr != nil {
		return nil, errors.NewBuildError(errors.ErrCodeCompilerMissing,
			"tailwindcss not found in PATH and npx not available", err)
	}
	return []string{npx, EngineTailwind}, nil
}

// Command returns the argv prefix used to invoke the CLI.
func (t *TailwindCLI) Command() []string {
	return append([]string(nil), t.command...)
}

// Probe runs the CLI once to make sure it starts.
func (t *TailwindCLI) Probe(ctx context.Context) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	output, err := t.run(ctx, "", "--help")
	if err != nil {
		return errors.NewBuildError(errors.ErrCodeCompilerMissing, "tailwindcss did not start", err).
			WithContext("output", logging.Excerpt(string(output), 512))
	}
	return nil
}

// BuildCSS writes the configuration, a content file listing classNames
// and the base input stylesheet to a scratch directory, then runs the CLI
// over them.
func (t *TailwindCLI) BuildCSS(
	ctx context.Context,
	configText string,
	classNames []string,
	opts BuildOptions,
) (*Result, error) {
	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	perf := logging.StartOperation(t.logger, "tailwind_build")

	dir, err := os.MkdirTemp(t.tempDir, "livepen-css-*")
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInternalError, "failed to create scratch directory")
	}
	defer os.RemoveAll(dir)

	files := map[string]string{
		"tailwind.config.js": configText,
		"input.css":          baseInputCSS,
		"content.html":       contentDocument(classNames),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o600); err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeInternalError, "failed to write "+name)
		}
	}

	outputPath := filepath.Join(dir, "output.css")
	args := []string{
		"--config", filepath.Join(dir, "tailwind.config.js"),
		"--input", filepath.Join(dir, "input.css"),
		"--output", outputPath,
		"--content", filepath.Join(dir, "content.html"),
	}
	if opts.Minify {
		args = append(args, "--minify")
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "--") {
			continue
		}
		if err := validation.ValidatePath(arg); err != nil {
			return nil, errors.NewSecurityError(errors.ErrCodeInvalidPath, err.Error())
		}
	}

	output, err := t.run(ctx, dir, args...)
	if err != nil {
		perf.EndWithError(ctx, err, "classes", len(classNames))
		return nil, errors.ErrCompileFailed(EngineTailwind, err).
			WithContext("output", logging.Excerpt(string(output), 2048))
	}

	css, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, errors.ErrCompileFailed(EngineTailwind, err)
	}

	perf.End(ctx, "classes", len(classNames), "bytes", len(css))
	return &Result{CSS: string(css)}, nil
}

func (t *TailwindCLI) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	argv := append(t.Command(), args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	// Children of a killed npx or shell wrapper may hold the pipe open.
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return output, ctx.Err()
	}
	return output, err
}

func (t *TailwindCLI) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// contentDocument renders the class names as a tiny HTML file for the
// CLI's content scanner. The scanner reads raw text and does not decode
// entities, so names are written unescaped.
func contentDocument(classNames []string) string {
	var b strings.Builder
	b.WriteString(`<div class="`)
	for i, c := range Deduplicate(classNames) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c)
	}
	b.WriteString("\"></div>\n")
	return b.String()
}

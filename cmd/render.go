package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/sanitizer"
	"github.com/conneroisu/livepen/internal/stylecompiler"
	"github.com/conneroisu/livepen/internal/validation"
	"github.com/conneroisu/livepen/internal/watcher"
)

var (
	renderFlags  *StandardFlags
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:     "render [file.html]",
	Aliases: []string{"r"},
	Short:   "Render markup once and print the preview document",
	Long: `Sanitize a markup file, compile its Tailwind classes and print the full
preview document the editor would show. Reads stdin when the file is
omitted or "-".

Examples:
  livepen render page.html
  livepen render page.html -c tailwind.config.js --minify -o out.html
  cat page.html | livepen render --engine none`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderFlags = AddStandardFlags(renderCmd, "compiler")
	renderCmd.Flags().StringVarP(&renderFlags.ConfigFile, "config-file", "c", "", "Tailwind config file")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the document to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	ctx := contextOf(cmd)

	source := "-"
	if len(args) == 1 {
		source = args[0]
	}
	markup, err := readInput(source, cmd.InOrStdin())
	if err != nil {
		return err
	}

	styleConfig := editor.DefaultStyleConfig
	if cfg.Editor.ConfigFile != "" {
		if styleConfig, err = readInput(cfg.Editor.ConfigFile, nil); err != nil {
			return err
		}
	}

	opts := []editor.Option{
		editor.WithSanitizer(sanitizer.New(cfg.SanitizerPolicy())),
		editor.WithBuildOptions(cfg.BuildOptions()),
		editor.WithLogger(logger),
	}
	compiler, err := stylecompiler.Init(ctx, cfg.CompilerOptions(logger))
	if err != nil {
		logger.Warn(ctx, err, "Style compiler unavailable, rendering unstyled")
	} else if compiler != nil {
		opts = append(opts, editor.WithCompiler(compiler))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Compiler.Timeout+5*time.Second)
	defer cancel()

	doc, err := editor.RenderOnce(ctx, markup, styleConfig, opts...)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if renderOutput != "" {
		if err := validation.ValidatePath(renderOutput); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := os.WriteFile(renderOutput, []byte(doc), 0o644); err != nil {
			return errors.NewIOError(errors.ErrCodeInternalError, "failed to write "+renderOutput, err).
				WithFile(renderOutput)
		}
		return nil
	}
	_, err = io.WriteString(cmd.OutOrStdout(), doc)
	return err
}

// readInput reads a buffer from path, or from stdin for "-".
func readInput(path string, stdin io.Reader) (string, error) {
	var r io.Reader
	if path == "-" {
		if stdin == nil {
			return "", fmt.Errorf("stdin is not available")
		}
		r = stdin
	} else {
		if err := validation.ValidatePath(path); err != nil {
			return "", fmt.Errorf("invalid input path: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, watcher.MaxBufferFileSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > watcher.MaxBufferFileSize {
		return "", fmt.Errorf("%s is larger than %d bytes", path, watcher.MaxBufferFileSize)
	}
	return string(data), nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/conneroisu/livepen/internal/config"
	"github.com/conneroisu/livepen/internal/editor"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/sanitizer"
	"github.com/conneroisu/livepen/internal/server"
	"github.com/conneroisu/livepen/internal/stylecompiler"
	"github.com/conneroisu/livepen/internal/watcher"
)

var serveFlags *StandardFlags

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the live editor",
	Long: `Start the editor server and open it in the browser.

The preview recompiles on every edit. When --markup-file or --config-file
is given, the buffer starts with the file's contents and reloads whenever
the file is saved by another program.

Examples:
  livepen serve
  livepen serve --port 3000 --no-open
  livepen serve -m page.html -c tailwind.config.js
  livepen serve --engine none          # skip the Tailwind CLI`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags = AddStandardFlags(serveCmd, "server", "editor", "compiler")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.ValidateFlags(cmd); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	for _, w := range config.ValidateConfig(cfg).Warnings {
		logger.Warn(contextOf(cmd), nil, "Configuration warning", "field", w.Field, "message", w.Message)
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the controller, compiler start-up, file sync and HTTP server
// until ctx ends or one of them fails.
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	controller := editor.NewController(
		editor.WithRepublishDelay(cfg.Preview.RepublishDelay),
		editor.WithSanitizer(sanitizer.New(cfg.SanitizerPolicy())),
		editor.WithBuildOptions(cfg.BuildOptions()),
		editor.WithLogger(logger),
	)

	srv, err := server.New(cfg, controller, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var bufferSync *watcher.BufferSync
	files := watcher.BufferFiles{Markup: cfg.Editor.MarkupFile, StyleConfig: cfg.Editor.ConfigFile}
	if files.Markup != "" || files.StyleConfig != "" {
		bufferSync, err = watcher.NewBufferSync(files, cfg.Editor.WatchDebounce, controller, logger)
		if err != nil {
			return err
		}
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return controller.Run(ctx)
	})

	// The editor is usable before the compiler is ready; previews are
	// unstyled until SetCompiler lands.
	p.Go(func(ctx context.Context) error {
		compiler, err := stylecompiler.Init(ctx, cfg.CompilerOptions(logger))
		if err != nil {
			logger.Warn(ctx, err, "Style compiler unavailable, previews will be unstyled")
			return nil
		}
		if compiler == nil {
			logger.Info(ctx, "Style compilation disabled", "engine", cfg.Compiler.Engine)
			return nil
		}
		if err := controller.SetCompiler(ctx, compiler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Info(ctx, "Style compiler ready", "engine", cfg.Compiler.Engine)
		return nil
	})

	if bufferSync != nil {
		p.Go(func(ctx context.Context) error {
			defer bufferSync.Stop()
			if err := bufferSync.Load(ctx); err != nil {
				return err
			}
			if err := bufferSync.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}

	p.Go(func(ctx context.Context) error {
		return srv.Start(ctx)
	})

	err = p.Wait()
	if err != nil && ctx.Err() != nil {
		// Errors caused by the shutdown itself are not failures.
		logger.Debug(context.Background(), "Shutdown error", "error", err)
		return nil
	}
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

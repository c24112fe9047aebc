package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps flag names to configuration keys. Only flags the
// user actually set override the file and environment.
var flagBindings = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"port":            "server.port",
	"host":            "server.host",
	"markup-file":     "editor.markup_file",
	"config-file":     "editor.config_file",
	"watch-debounce":  "editor.watch_debounce",
	"republish-delay": "preview.republish_delay",
	"engine":          "compiler.engine",
	"tailwind-bin":    "compiler.binary",
	"minify":          "compiler.minify",
	"compile-timeout": "compiler.timeout",
	"strict":          "sanitizer.strict",
}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port   int
	Host   string
	NoOpen bool

	// Editor flags
	MarkupFile     string
	ConfigFile     string
	WatchDebounce  time.Duration
	RepublishDelay time.Duration

	// Compiler flags
	Engine         string
	TailwindBinary string
	Minify         bool
	CompileTimeout time.Duration
	Strict         bool
}

// AddStandardFlags adds the named flag groups to a command.
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd.Flags(), flags)
		case "editor":
			addEditorFlags(cmd.Flags(), flags)
		case "compiler":
			addCompilerFlags(cmd.Flags(), flags)
		}
	}

	return flags
}

func addServerFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on")
	fs.StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	fs.BoolVar(&flags.NoOpen, "no-open", false, "Don't open browser automatically")
}

func addEditorFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.StringVarP(&flags.MarkupFile, "markup-file", "m", "", "HTML file backing the markup buffer")
	fs.StringVarP(&flags.ConfigFile, "config-file", "c", "", "Tailwind config file backing the config buffer")
	fs.DurationVar(&flags.WatchDebounce, "watch-debounce", 100*time.Millisecond, "Quiet period before a file change is reloaded")
	fs.DurationVar(&flags.RepublishDelay, "republish-delay", 3*time.Second, "Quiet period before the preview frame is recreated")
}

func addCompilerFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.StringVar(&flags.Engine, "engine", "tailwindcss", "Style engine (tailwindcss, none)")
	fs.StringVar(&flags.TailwindBinary, "tailwind-bin", "", "Path to the tailwindcss binary (default: PATH, then npx)")
	fs.BoolVar(&flags.Minify, "minify", false, "Minify compiled CSS")
	fs.DurationVar(&flags.CompileTimeout, "compile-timeout", 30*time.Second, "Per-compile timeout")
	fs.BoolVar(&flags.Strict, "strict", false, "Sanitize without scripts or inline handlers")
}

// ValidateFlags checks values that pflag cannot.
func (f *StandardFlags) ValidateFlags(cmd *cobra.Command) error {
	fs := cmd.Flags()
	if fs.Changed("port") && (f.Port < 0 || f.Port > 65535) {
		return fmt.Errorf("port must be between 0 and 65535, got %d", f.Port)
	}
	if fs.Changed("host") && f.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if fs.Changed("republish-delay") && f.RepublishDelay <= 0 {
		return fmt.Errorf("republish delay must be positive, got %s", f.RepublishDelay)
	}
	if fs.Changed("watch-debounce") && f.WatchDebounce < 0 {
		return fmt.Errorf("watch debounce cannot be negative, got %s", f.WatchDebounce)
	}
	if f.MarkupFile != "" && f.MarkupFile == f.ConfigFile {
		return fmt.Errorf("--markup-file and --config-file must differ")
	}
	return nil
}

// bindFlags copies flags the user set into v. The inverted --no-open
// flag maps onto server.open.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var err error
	visit := func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if key, ok := flagBindings[f.Name]; ok {
			err = v.BindPFlag(key, f)
		}
	}
	cmd.Flags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	if err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if f := cmd.Flags().Lookup("no-open"); f != nil && f.Changed {
		noOpen, _ := cmd.Flags().GetBool("no-open")
		v.Set("server.open", !noOpen)
	}
	return nil
}

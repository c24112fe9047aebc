// Package config provides configuration management for livepen using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Sources are merged with flags taking precedence over LIVEPEN_ prefixed
// environment variables, which take precedence over .livepen.yml. Load
// fills in defaults for anything unset and validates the result.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/sanitizer"
	"github.com/conneroisu/livepen/internal/stylecompiler"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Editor    EditorConfig    `mapstructure:"editor" yaml:"editor"`
	Preview   PreviewConfig   `mapstructure:"preview" yaml:"preview"`
	Compiler  CompilerConfig  `mapstructure:"compiler" yaml:"compiler"`
	Sanitizer SanitizerConfig `mapstructure:"sanitizer" yaml:"sanitizer"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// EditorConfig names optional files backing the two buffers.
type EditorConfig struct {
	MarkupFile    string        `mapstructure:"markup_file" yaml:"markup_file"`
	ConfigFile    string        `mapstructure:"config_file" yaml:"config_file"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce"`
}

type PreviewConfig struct {
	RepublishDelay time.Duration `mapstructure:"republish_delay" yaml:"republish_delay"`
}

type CompilerConfig struct {
	Engine        string        `mapstructure:"engine" yaml:"engine"`
	Binary        string        `mapstructure:"binary" yaml:"binary"`
	Minify        bool          `mapstructure:"minify" yaml:"minify"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Probe         bool          `mapstructure:"probe" yaml:"probe"`
	TempDir       string        `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// SanitizerConfig extends the trusted allow-list. Strict switches to the
// default policy without scripts or inline handlers.
type SanitizerConfig struct {
	Strict     bool     `mapstructure:"strict" yaml:"strict"`
	ExtraTags  []string `mapstructure:"extra_tags" yaml:"extra_tags"`
	ExtraAttrs []string `mapstructure:"extra_attrs" yaml:"extra_attrs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v without overriding values
// that are already set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", true)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("editor.watch_debounce", 100*time.Millisecond)

	v.SetDefault("preview.republish_delay", 3000*time.Millisecond)

	compilerDefaults := stylecompiler.DefaultOptions()
	v.SetDefault("compiler.engine", compilerDefaults.Engine)
	v.SetDefault("compiler.minify", false)
	v.SetDefault("compiler.timeout", compilerDefaults.Timeout)
	v.SetDefault("compiler.max_concurrent", compilerDefaults.MaxConcurrent)
	v.SetDefault("compiler.probe", compilerDefaults.Probe)

	v.SetDefault("sanitizer.strict", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	if result := ValidateConfig(&config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", result.Err())
	}

	return &config, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SanitizerPolicy builds the allow-list described by the sanitizer section.
func (c *Config) SanitizerPolicy() *sanitizer.Policy {
	policy := sanitizer.TrustedPolicy()
	if c.Sanitizer.Strict {
		policy = sanitizer.DefaultPolicy()
	}
	return policy.AddTags(c.Sanitizer.ExtraTags...).AddAttrs(c.Sanitizer.ExtraAttrs...)
}

// CompilerOptions converts the compiler section for stylecompiler.Init.
func (c *Config) CompilerOptions(logger logging.Logger) stylecompiler.Options {
	opts := stylecompiler.DefaultOptions()
	opts.Engine = c.Compiler.Engine
	opts.Binary = c.Compiler.Binary
	opts.Timeout = c.Compiler.Timeout
	opts.MaxConcurrent = c.Compiler.MaxConcurrent
	opts.Probe = c.Compiler.Probe
	opts.TempDir = c.Compiler.TempDir
	opts.Logger = logger
	return opts
}

// BuildOptions returns the per-compile options.
func (c *Config) BuildOptions() stylecompiler.BuildOptions {
	return stylecompiler.BuildOptions{Minify: c.Compiler.Minify}
}

// LoggerConfig converts the log section. The level has been validated by
// Load.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	return lc
}

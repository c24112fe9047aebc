package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/stylecompiler"
	"github.com/conneroisu/livepen/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err folds the validation errors into one config error, or nil.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	msgs := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		msgs = append(msgs, e.Error())
	}
	le := errors.NewConfigError(errors.ErrCodeConfigInvalid, strings.Join(msgs, "; "))
	return le.WithContext("fields", len(vr.Errors))
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, items []ValidationError) {
		if len(items) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, item := range items {
			fmt.Fprintf(&builder, "  - %s: %s\n", item.Field, item.Message)
			for _, suggestion := range item.Suggestions {
				fmt.Fprintf(&builder, "    hint: %s\n", suggestion)
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfig checks every section and collects all problems.
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&config.Server, result)
	validateEditor(&config.Editor, result)
	validatePreview(&config.Preview, result)
	validateCompiler(&config.Compiler, result)
	validateSanitizer(&config.Sanitizer, result)
	validateLog(&config.Log, result)

	return result
}

func validateServer(server *ServerConfig, result *ValidationResult) {
	// 0 lets the OS pick a port.
	if server.Port < 0 || server.Port > 65535 {
		result.addError("server.port", server.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", server.Port))
	}

	if strings.ContainsAny(server.Host, ";&|$`()<>\"'\\ ") {
		result.addError("server.host", server.Host, "host contains dangerous characters")
	}
	if server.Host == "0.0.0.0" || server.Host == "::" {
		result.addWarning("server.host", server.Host,
			"the editor executes arbitrary scripts and is reachable from the network",
			"bind to localhost unless remote access is intended")
	}

	for _, origin := range server.AllowedOrigins {
		if strings.ContainsAny(origin, ";&|$`<>\"' ") {
			result.addError("server.allowed_origins", origin, "origin contains dangerous characters")
		}
	}
}

func validateEditor(editor *EditorConfig, result *ValidationResult) {
	for field, path := range map[string]string{
		"editor.markup_file": editor.MarkupFile,
		"editor.config_file": editor.ConfigFile,
	} {
		if path == "" {
			continue
		}
		if err := validation.ValidatePath(path); err != nil {
			result.addError(field, path, err.Error())
		}
	}
	if editor.MarkupFile != "" && editor.MarkupFile == editor.ConfigFile {
		result.addError("editor.config_file", editor.ConfigFile,
			"markup and config buffers cannot share a file")
	}
	if editor.WatchDebounce < 0 {
		result.addError("editor.watch_debounce", editor.WatchDebounce, "debounce must not be negative")
	}
}

func validatePreview(preview *PreviewConfig, result *ValidationResult) {
	if preview.RepublishDelay <= 0 {
		result.addError("preview.republish_delay", preview.RepublishDelay,
			"republish delay must be positive", "use a duration such as 3s")
	}
}

func validateCompiler(compiler *CompilerConfig, result *ValidationResult) {
	switch compiler.Engine {
	case stylecompiler.EngineTailwind:
	case stylecompiler.EngineNone:
		result.addWarning("compiler.engine", compiler.Engine, "style compilation is disabled")
	default:
		result.addError("compiler.engine", compiler.Engine, "unknown engine",
			"use "+stylecompiler.EngineTailwind+" or "+stylecompiler.EngineNone)
	}

	if compiler.Binary != "" {
		if err := validation.ValidatePath(compiler.Binary); err != nil {
			result.addError("compiler.binary", compiler.Binary, err.Error())
		}
	}
	if compiler.TempDir != "" {
		if err := validation.ValidatePath(compiler.TempDir); err != nil {
			result.addError("compiler.temp_dir", compiler.TempDir, err.Error())
		}
	}
	if compiler.Timeout <= 0 {
		result.addError("compiler.timeout", compiler.Timeout, "timeout must be positive")
	}
	if compiler.MaxConcurrent < 1 {
		result.addError("compiler.max_concurrent", compiler.MaxConcurrent, "at least one compile must be allowed")
	}
}

func validateSanitizer(s *SanitizerConfig, result *ValidationResult) {
	for _, tag := range s.ExtraTags {
		if err := validation.ValidateIdentifier(tag); err != nil {
			result.addError("sanitizer.extra_tags", tag, err.Error())
		}
	}
	for _, attr := range s.ExtraAttrs {
		if err := validation.ValidateIdentifier(attr); err != nil {
			result.addError("sanitizer.extra_attrs", attr, err.Error())
		}
	}
}

func validateLog(l *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		result.addError("log.level", l.Level, err.Error(), "use debug, info, warn or error")
	}
	if l.Format != "text" && l.Format != "json" {
		result.addError("log.format", l.Format, "unknown log format", "use text or json")
	}
}

// Package logging is livepen's structured logger: a small interface over
// log/slog that takes the error as its own argument and scopes loggers by
// component.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps the config and flag spelling of a level to a LogLevel.
// An empty string means info.
func ParseLevel(s string) (LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return LevelInfo, nil
	case "warning":
		s = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger is the logging interface used throughout livepen. Warn and Error
// take the error separately so it is always rendered under "error".
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LivepenLogger implements Logger on a *slog.Logger.
type LivepenLogger struct {
	slog *slog.Logger
}

// LoggerConfig selects the handler a logger writes through.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger builds a logger from config, or from DefaultConfig when config
// is nil.
func NewLogger(config *LoggerConfig) *LivepenLogger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level, AddSource: config.AddSource}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}
	return &LivepenLogger{slog: logger}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *LivepenLogger {
	return &LivepenLogger{slog: slog.New(slog.DiscardHandler)}
}

func (l *LivepenLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelDebug, nil, msg, fields)
}

func (l *LivepenLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelInfo, nil, msg, fields)
}

func (l *LivepenLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, LevelWarn, err, msg, fields)
}

func (l *LivepenLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, LevelError, err, msg, fields)
}

// With returns a logger that adds fields to every entry. l is unchanged.
func (l *LivepenLogger) With(fields ...interface{}) Logger {
	return &LivepenLogger{slog: l.slog.With(fields...)}
}

func (l *LivepenLogger) WithComponent(component string) Logger {
	return &LivepenLogger{slog: l.slog.With("component", component)}
}

func (l *LivepenLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}

	// Skip Callers, log and the exported method.
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if err != nil {
		record.AddAttrs(slog.String("error", err.Error()))
	}
	record.Add(fields...)
	_ = l.slog.Handler().Handle(ctx, record)
}

// Excerpt shortens editor content for log lines.
func Excerpt(data string, max int) string {
	if max <= 0 || len(data) <= max {
		return data
	}
	return data[:max] + "...[TRUNCATED]"
}

// PerfLogger times one operation and logs its outcome.
type PerfLogger struct {
	Logger
	start time.Time
}

func StartOperation(logger Logger, operation string) *PerfLogger {
	return &PerfLogger{
		Logger: logger.With("operation", operation),
		start:  time.Now(),
	}
}

// End logs success at debug level with the elapsed time.
func (p *PerfLogger) End(ctx context.Context, fields ...interface{}) {
	p.Debug(ctx, "Operation completed", append(fields, "duration_ms", time.Since(p.start).Milliseconds())...)
}

// EndWithError logs failure at error level with the elapsed time.
func (p *PerfLogger) EndWithError(ctx context.Context, err error, fields ...interface{}) {
	p.Error(ctx, err, "Operation failed", append(fields, "duration_ms", time.Since(p.start).Milliseconds())...)
}

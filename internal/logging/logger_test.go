package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	scoped := logger.WithComponent("controller").With("cycle", 3)
	scoped.Warn(context.Background(), errors.New("boom"), "compile failed", "classes", 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "compile failed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "controller", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 3, entry["cycle"])
	assert.EqualValues(t, 2, entry["classes"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Error(context.Background(), nil, "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible error")
}

func TestWithDoesNotLeakFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	_ = base.With("request_id", "abc")

	base.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "abc...[TRUNCATED]", Excerpt("abcdef", 3))
	assert.Equal(t, "abcdef", Excerpt("abcdef", 0))
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := StartOperation(logger, "build_css")
	op.End(context.Background(), "bytes", 10)
	op.EndWithError(context.Background(), errors.New("timeout"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "operation=build_css")
	assert.Contains(t, lines[0], "duration_ms=")
	assert.Contains(t, lines[1], "error=timeout")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "dropped")
	})
}

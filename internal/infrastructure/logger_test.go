package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/config"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry), "log line is not JSON: %s", b)
	return entry
}

func TestInitializeLogger_File(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	logFile := filepath.Join(t.TempDir(), "logs", "pricinglab.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: logFile})
	require.NoError(t, err)
	assert.Same(t, logger, GetLogger())

	logger.Info("upload stored", "upload_id", "u-1")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	entry := decodeLine(t, content)
	assert.Equal(t, "upload stored", entry["msg"])
	assert.Equal(t, "u-1", entry["upload_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLogger_Once(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	dir := t.TempDir()
	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: filepath.Join(dir, "a.log")})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: filepath.Join(dir, "b.log")})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoFileExists(t, filepath.Join(dir, "b.log"))
}

func TestInitializeLogger_BadPath(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := InitializeLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(blocker, "x.log")})
	require.Error(t, err)
	assert.Same(t, slog.Default(), GetLogger())
}

func TestNewLogger_TraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.InfoContext(WithTraceID(context.Background(), "trace-123"), "with trace")
	assert.Equal(t, "trace-123", decodeLine(t, buf.Bytes())["trace_id"])

	buf.Reset()
	logger.InfoContext(context.Background(), "without trace")
	assert.NotContains(t, decodeLine(t, buf.Bytes()), "trace_id")

	buf.Reset()
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	logger.With("component", "janitor").InfoContext(ctx, "request scoped")
	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "req-42", entry["trace_id"])
	assert.Equal(t, "janitor", entry["component"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf).
		InfoContext(WithTraceID(context.Background(), "t-1"), "sweep done", "removed", 2)

	assert.Contains(t, buf.String(), `msg="sweep done"`)
	assert.Contains(t, buf.String(), "removed=2")
	assert.Contains(t, buf.String(), "trace_id=t-1")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		log   func(*slog.Logger)
		shown bool
	}{
		{"debug hidden at info", "info", func(l *slog.Logger) { l.Debug("m") }, false},
		{"info shown at info", "info", func(l *slog.Logger) { l.Info("m") }, true},
		{"info hidden at warn", "warn", func(l *slog.Logger) { l.Info("m") }, false},
		{"warning alias", "warning", func(l *slog.Logger) { l.Warn("m") }, true},
		{"case insensitive", "DEBUG", func(l *slog.Logger) { l.Debug("m") }, true},
		{"warn hidden at error", "error", func(l *slog.Logger) { l.Warn("m") }, false},
		{"unknown is info", "verbose", func(l *slog.Logger) { l.Info("m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(config.LoggingConfig{Level: tt.level}, &buf))
			assert.Equal(t, tt.shown, buf.Len() > 0, buf.String())
		})
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	require.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing id is kept")

	other := GetTraceID(EnsureTraceID(context.Background()))
	assert.NotEqual(t, id, other)
}

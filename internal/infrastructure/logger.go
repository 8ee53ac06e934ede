package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pricinglab/internal/config"
)

// Process logger state. InitializeLogger fills it at most once.
var (
	loggerMu    sync.Mutex
	procLogger  *slog.Logger
	procLogFile *os.File
)

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// InitializeLogger builds the process logger from cfg and installs it as
// the slog default. Once it has succeeded, later calls return the same
// logger and ignore cfg.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if procLogger != nil {
		return procLogger, nil
	}
	w, file, err := logWriter(cfg)
	if err != nil {
		return nil, err
	}
	procLogger = NewLogger(cfg, w)
	procLogFile = file
	slog.SetDefault(procLogger)
	return procLogger, nil
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if procLogger == nil {
		return slog.Default()
	}
	return procLogger
}

// NewLogger writes to w as JSON, or as logfmt-style text when cfg.Format is
// "text". Records logged with a context carrying a trace id get trace_id.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level, ok := logLevels[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: cfg.Development, Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(correlationHandler{h})
}

// logWriter resolves cfg.Output. file is non-nil when a log file was opened.
func logWriter(cfg config.LoggingConfig) (w io.Writer, file *os.File, err error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err = os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
	}
	if output == "both" {
		return io.MultiWriter(os.Stdout, file), file, nil
	}
	return file, file, nil
}

// correlationHandler stamps trace_id on records whose context carries one.
type correlationHandler struct {
	slog.Handler
}

func (h correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return correlationHandler{h.Handler.WithAttrs(attrs)}
}

func (h correlationHandler) WithGroup(name string) slog.Handler {
	return correlationHandler{h.Handler.WithGroup(name)}
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if procLogFile == nil {
		return nil
	}
	err := procLogFile.Close()
	procLogFile = nil
	return err
}

// ResetLoggerForTesting forgets the process logger so a test can build a
// fresh one.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	loggerMu.Lock()
	procLogger = nil
	loggerMu.Unlock()
}

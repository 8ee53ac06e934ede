package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured slog record with its attributes flattened.
// Grouped attributes are keyed "group.key".
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory. Handlers
// derived through WithAttrs and WithGroup write to the same capture.
type LogCapture struct {
	sink   *logSink
	attrs  []slog.Attr
	prefix string
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
	t       testing.TB
}

// NewTestLogger returns a logger whose records are captured and echoed to
// the test log.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	capture := &LogCapture{sink: &logSink{t: t}}
	return slog.New(capture), capture
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	c.sink.mu.Lock()
	c.sink.records = append(c.sink.records, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	c.sink.mu.Unlock()

	if c.sink.t != nil {
		c.sink.t.Logf("%s %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = make([]slog.Attr, 0, len(c.attrs)+len(attrs))
	next.attrs = append(next.attrs, c.attrs...)
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	next := *c
	next.prefix = c.prefix + name + "."
	return &next
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a copy of everything captured so far.
func (c *LogCapture) Records() []LogRecord {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return append([]LogRecord(nil), c.sink.records...)
}

// RecordsAt returns the records logged at exactly level.
func (c *LogCapture) RecordsAt(level slog.Level) []LogRecord {
	var out []LogRecord
	for _, r := range c.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// ContainsMessage reports whether any record's message contains substr.
func (c *LogCapture) ContainsMessage(substr string) bool {
	for _, r := range c.Records() {
		if strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any record carries key with exactly value.
// slog stores ints as int64, so compare against int64 values.
func (c *LogCapture) ContainsAttr(key string, value any) bool {
	for _, r := range c.Records() {
		if v, ok := r.Attrs[key]; ok && v == value {
			return true
		}
	}
	return false
}

func (c *LogCapture) Count() int {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return len(c.sink.records)
}

func (c *LogCapture) Reset() {
	c.sink.mu.Lock()
	c.sink.records = nil
	c.sink.mu.Unlock()
}

// AssertLogContains fails t unless a record at level contains message.
func AssertLogContains(t testing.TB, c *LogCapture, level slog.Level, message string) {
	t.Helper()
	records := c.RecordsAt(level)
	for _, r := range records {
		if strings.Contains(r.Message, message) {
			return
		}
	}
	messages := make([]string, len(records))
	for i, r := range records {
		messages[i] = r.Message
	}
	t.Errorf("no %s record contains %q; have %q", level, message, messages)
}

// AssertLogAttr fails t unless some record carries key=value.
func AssertLogAttr(t testing.TB, c *LogCapture, key string, value any) {
	t.Helper()
	if c.ContainsAttr(key, value) {
		return
	}
	seen := make([]any, 0)
	for _, r := range c.Records() {
		if v, ok := r.Attrs[key]; ok {
			seen = append(seen, v)
		}
	}
	t.Errorf("no record carries %s=%v (%T); values seen: %v", key, value, value, seen)
}

// AssertNoErrors fails t if anything was logged at error level.
func AssertNoErrors(t testing.TB, c *LogCapture) {
	t.Helper()
	for _, r := range c.RecordsAt(slog.LevelError) {
		t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
	}
}

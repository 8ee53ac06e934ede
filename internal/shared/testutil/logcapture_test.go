package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture_Records(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.Info("upload stored", slog.String("upload_id", "u1"))
	logger.Error("analysis failed", slog.Int("rows", 3))

	require.Equal(t, 2, logs.Count())
	assert.True(t, logs.ContainsMessage("stored"))
	assert.True(t, logs.ContainsAttr("upload_id", "u1"))
	assert.True(t, logs.ContainsAttr("rows", int64(3)))
	assert.False(t, logs.ContainsAttr("rows", 3), "slog keeps ints as int64")
	assert.Len(t, logs.RecordsAt(slog.LevelError), 1)

	logs.Reset()
	assert.Zero(t, logs.Count())
}

func TestLogCapture_WithAttrsAndGroups(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.With(slog.String("component", "janitor")).
		WithGroup("sweep").
		Info("expired", slog.Int("removed", 2), slog.Group("dir", slog.String("path", "/tmp")))

	records := logs.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "janitor", records[0].Attrs["component"])
	assert.Equal(t, int64(2), records[0].Attrs["sweep.removed"])
	assert.Equal(t, "/tmp", records[0].Attrs["sweep.dir.path"])
}

func TestLogCapture_Assertions(t *testing.T) {
	logger, logs := NewTestLogger(t)
	logger.Warn("fallback used", slog.String("event", "placeholder_chart"))

	AssertLogContains(t, logs, slog.LevelWarn, "fallback")
	AssertLogAttr(t, logs, "event", "placeholder_chart")
	AssertNoErrors(t, logs)
}

func TestLogCapture_Concurrent(t *testing.T) {
	logger, logs := NewTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("client registered", slog.Int("client", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, logs.Count())
}

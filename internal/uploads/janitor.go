package uploads

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pricinglab/pkg/contracts/domain"
)

// Janitor deletes uploads older than the retention period on a cron
// schedule.
type Janitor struct {
	store     *Store
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	onExpire  func(domain.Upload)

	mu     sync.Mutex
	runner *cron.Cron
}

// NewJanitor returns a janitor for store. onExpire, if set, is called for
// every upload removed by a sweep.
func NewJanitor(store *Store, retention time.Duration, schedule string, logger *slog.Logger, onExpire func(domain.Upload)) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:     store,
		retention: retention,
		schedule:  schedule,
		logger:    logger.With(slog.String("component", "upload_janitor")),
		onExpire:  onExpire,
	}
}

// Start schedules periodic sweeps. A zero retention or empty schedule
// disables the janitor.
func (j *Janitor) Start() error {
	if j.retention <= 0 || j.schedule == "" {
		j.logger.Info("upload janitor disabled")
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runner != nil {
		return nil
	}

	clog := cronLogger{j.logger}
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(clog),
		cron.Recover(clog),
	))
	if _, err := runner.AddFunc(j.schedule, func() { j.Sweep() }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", j.schedule, err)
	}
	runner.Start()
	j.runner = runner

	j.logger.Info("upload janitor started",
		slog.String("schedule", j.schedule),
		slog.Duration("retention", j.retention))
	return nil
}

// Stop halts the schedule and waits for a running sweep or ctx, whichever
// finishes first.
func (j *Janitor) Stop(ctx context.Context) {
	j.mu.Lock()
	runner := j.runner
	j.runner = nil
	j.mu.Unlock()
	if runner == nil {
		return
	}

	select {
	case <-runner.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep removes every upload older than the retention period and returns
// how many were deleted.
func (j *Janitor) Sweep() int {
	if j.retention <= 0 {
		return 0
	}
	cutoff := j.store.now().Add(-j.retention)
	removed := 0
	for _, up := range j.store.OlderThan(cutoff) {
		if err := j.store.Delete(up.ID); err != nil {
			j.logger.Warn("failed to expire upload",
				slog.String("upload_id", up.ID),
				slog.String("error", err.Error()))
			continue
		}
		removed++
		if j.onExpire != nil {
			j.onExpire(up)
		}
	}
	if removed > 0 {
		j.logger.Info("expired uploads removed", slog.Int("count", removed))
	}
	return removed
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

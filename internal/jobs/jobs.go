// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/erazemk/lostfound/internal/metrics"
)

// Func is a maintenance task. Its context is cancelled when the runner stops.
type Func func(ctx context.Context) error

// Runner schedules Funcs. Runs of the same job never overlap.
type Runner struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a stopped Runner.
func New() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{})),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers fn under name. schedule is any expression cron accepts,
// such as "@every 1h" or "0 3 * * *".
func (r *Runner) Every(schedule, name string, fn Func) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(func() {
		r.run(name, fn)
	}))
	if _, err := r.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	return nil
}

func (r *Runner) run(name string, fn Func) {
	start := time.Now()
	err := fn(r.ctx)
	metrics.RecordJobRun(name, err == nil)
	if err != nil {
		slog.Error("job failed", "job", name, "error", err)
		return
	}
	slog.Info("job finished", "job", name, "duration", time.Since(start).Round(time.Millisecond))
}

// cronLogger sends the scheduler's own messages to slog. Its chatter is
// Debug; recovered panics are Error.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// Start begins running scheduled jobs in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	r.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("jobs still running at shutdown")
	}
}

package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRejectsBadSpec(t *testing.T) {
	r := New()
	err := r.Every("not a schedule", "broken", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunnerRunsJobs(t *testing.T) {
	r := New()
	var ok, failed atomic.Int32

	require.NoError(t, r.Every("@every 1s", "counter", func(context.Context) error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, r.Every("@every 1s", "failing", func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}))

	r.Start()
	assert.Eventually(t, func() bool {
		return ok.Load() > 0 && failed.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

func TestStopCancelsJobContext(t *testing.T) {
	r := New()
	started := make(chan struct{})
	var once atomic.Bool

	require.NoError(t, r.Every("@every 1s", "blocking", func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Stop(ctx)
	assert.NoError(t, ctx.Err(), "Stop should return once the job sees cancellation")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPanicsAreLoggedThroughSlog(t *testing.T) {
	var out syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&out, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := New()
	require.NoError(t, r.Every("@every 1s", "exploding", func(context.Context) error {
		panic("kaboom")
	}))
	r.Start()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "kaboom")
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)

	logged := out.String()
	assert.Contains(t, logged, "level=ERROR")
	assert.Contains(t, logged, `msg="cron: panic"`)
	assert.NotContains(t, logged, "cron: wake", "scheduler chatter should stay at debug level")
}

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceRecordsStatus(t *testing.T) {
	calls := 0
	s := New(nil,
		Cycle{Name: "ok", Interval: time.Minute, Run: func(ctx context.Context, log *slog.Logger) error { calls++; return nil }},
		Cycle{Name: "bad", Interval: time.Minute, Run: func(ctx context.Context, log *slog.Logger) error { return errors.New("upstream down") }},
		Cycle{Name: "panic", Interval: time.Minute, Run: func(ctx context.Context, log *slog.Logger) error { panic("boom") }},
	)
	ctx := context.Background()

	require.NoError(t, s.RunOnce(ctx, "ok"))
	assert.EqualError(t, s.RunOnce(ctx, "bad"), "upstream down")
	assert.EqualError(t, s.RunOnce(ctx, "panic"), "panic: boom")
	assert.Error(t, s.RunOnce(ctx, "missing"))

	st := s.Status()
	require.Len(t, st, 3)
	assert.Equal(t, "ok", st[0].Name)
	assert.Equal(t, int64(1), st[0].Runs)
	assert.False(t, st[0].LastSuccess.IsZero())
	assert.Equal(t, int64(1), st[1].Failures)
	assert.Equal(t, "upstream down", st[1].LastError)
	assert.True(t, st[1].LastSuccess.IsZero())
	assert.Equal(t, "panic: boom", st[2].LastError)
	assert.Equal(t, 1, calls)
}

func TestStartRunsCyclesIndependently(t *testing.T) {
	var fast, slow atomic.Int32
	block := make(chan struct{})
	s := New(nil,
		Cycle{Name: "coins", Interval: 5 * time.Millisecond, Run: func(ctx context.Context, log *slog.Logger) error {
			fast.Add(1)
			return nil
		}},
		Cycle{Name: "wallets", Interval: 5 * time.Millisecond, Run: func(ctx context.Context, log *slog.Logger) error {
			slow.Add(1)
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// coins keeps cycling while wallets is stuck in its first run
	require.Eventually(t, func() bool { return slow.Load() == 1 }, time.Second, time.Millisecond)
	start := fast.Load()
	require.Eventually(t, func() bool { return fast.Load() >= start+3 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), slow.Load())
	assert.True(t, s.Running())

	cancel()
	close(block)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.Running())
}

func TestStartTwice(t *testing.T) {
	s := New(nil, Cycle{Name: "c", Interval: time.Hour, Run: func(ctx context.Context, log *slog.Logger) error { return nil }})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	require.Eventually(t, s.Running, time.Second, time.Millisecond)
	assert.Error(t, s.Start(ctx))
	cancel()
}

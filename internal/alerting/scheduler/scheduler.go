package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/coinwatch/internal/alerting/metrics"
)

// Cycle is a unit of periodic work.
type Cycle struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, log *slog.Logger) error
}

// CycleStatus is a snapshot of one cycle's history.
type CycleStatus struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	Running      bool          `json:"running"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Scheduler runs each cycle in its own loop: run, then sleep the interval.
// A failing or panicking run never stops its loop.
type Scheduler struct {
	cycles  []Cycle
	log     *slog.Logger
	running atomic.Bool

	mu     sync.RWMutex
	status map[string]*CycleStatus
}

func New(log *slog.Logger, cycles ...Cycle) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cycles: cycles,
		log:    log.With("component", "scheduler"),
		status: make(map[string]*CycleStatus, len(cycles)),
	}
	for _, c := range cycles {
		s.status[c.Name] = &CycleStatus{Name: c.Name, Interval: c.Interval}
	}
	return s
}

// Start blocks until ctx is cancelled and every loop has returned.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.running.Store(false)

	var wg sync.WaitGroup
	for _, c := range s.cycles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, c)
		}()
	}
	s.log.Info("Scheduler started", "cycles", len(s.cycles))
	wg.Wait()
	s.log.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, c Cycle) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		_ = s.runOnce(ctx, c)
		timer.Reset(c.Interval)
	}
}

// RunOnce runs the named cycle immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, c := range s.cycles {
		if c.Name == name {
			return s.runOnce(ctx, c)
		}
	}
	return fmt.Errorf("unknown cycle %q", name)
}

func (s *Scheduler) runOnce(ctx context.Context, c Cycle) (err error) {
	runID := uuid.NewString()
	log := s.log.With("cycle", c.Name, "run_id", runID)
	start := time.Now()
	s.update(c.Name, func(st *CycleStatus) {
		st.Running = true
		st.LastRun = start
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("Cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
		elapsed := time.Since(start)
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.CycleRuns.WithLabelValues(c.Name, result).Inc()
		metrics.CycleDuration.WithLabelValues(c.Name).Observe(elapsed.Seconds())

		s.update(c.Name, func(st *CycleStatus) {
			st.Running = false
			st.Runs++
			st.LastDuration = elapsed
			if err != nil {
				st.Failures++
				st.LastError = err.Error()
				return
			}
			st.LastSuccess = time.Now()
			st.LastError = ""
		})
	}()

	log.Debug("Cycle started")
	if err = c.Run(ctx, log); err != nil {
		log.Error("Cycle failed", "error", err, "duration", time.Since(start))
		return err
	}
	log.Debug("Cycle finished", "duration", time.Since(start))
	return nil
}

func (s *Scheduler) update(name string, fn func(*CycleStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[name]; ok {
		fn(st)
	}
}

// Status returns a snapshot per cycle, in registration order.
func (s *Scheduler) Status() []CycleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CycleStatus, 0, len(s.cycles))
	for _, c := range s.cycles {
		out = append(out, *s.status[c.Name])
	}
	return out
}

// Running reports whether Start is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/vietddude/coinwatch/internal/alerting/metrics"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds calls for transient failures, first call included.
	MaxAttempts int
	// MaxRateLimitRetries bounds extra calls after a 429.
	MaxRateLimitRetries int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	BackoffMultiple     float64

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:         3,
	MaxRateLimitRetries: 1,
	InitialDelay:        500 * time.Millisecond,
	MaxDelay:            10 * time.Second,
	BackoffMultiple:     2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionWait
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionWait:
		return "wait"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFatal
	}
	if errors.Is(err, context.Canceled) {
		return ActionFatal
	}

	var rl *provider.RateLimitError
	if errors.As(err, &rl) {
		return ActionWait
	}

	var se *provider.StatusError
	if errors.As(err, &se) {
		if se.Temporary() {
			return ActionRetry
		}
		return ActionFatal
	}

	// Upstream answered; the request itself is the problem.
	var re *provider.RPCError
	if errors.As(err, &re) {
		return ActionFatal
	}

	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "forbidden") {
		return ActionFatal
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}

// CallWithRetry executes an operation, waiting out 429s and backing off on
// transient failures. The result of the last attempt is returned.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	op provider.Operation,
	config RetryConfig,
) (json.RawMessage, error) {
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := &backoff.Backoff{
		Min:    config.InitialDelay,
		Max:    config.MaxDelay,
		Factor: config.BackoffMultiple,
		Jitter: true,
	}

	var lastErr error
	attempts, waits := 0, 0
	for {
		result, err := p.Execute(ctx, op)
		if err == nil {
			return result, nil
		}
		lastErr = err
		attempts++

		var delay time.Duration
		switch ClassifyError(err) {
		case ActionFatal:
			return nil, err
		case ActionWait:
			if waits >= config.MaxRateLimitRetries {
				return nil, err
			}
			waits++
			var rl *provider.RateLimitError
			errors.As(err, &rl)
			delay = rl.RetryAfter
		case ActionRetry:
			if attempts >= maxAttempts {
				return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
			}
			delay = b.Duration()
		}

		metrics.UpstreamRetries.WithLabelValues(p.GetName()).Inc()
		slog.Debug("Retrying upstream call",
			"provider", p.GetName(),
			"op", op.Name,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// Retrying wraps a provider so every Execute goes through CallWithRetry.
type Retrying struct {
	provider.Provider
	Config RetryConfig
}

// NewRetrying wraps p.
func NewRetrying(p provider.Provider, cfg RetryConfig) *Retrying {
	return &Retrying{Provider: p, Config: cfg}
}

// Execute runs op with retries.
func (r *Retrying) Execute(ctx context.Context, op provider.Operation) (json.RawMessage, error) {
	return CallWithRetry(ctx, r.Provider, op, r.Config)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

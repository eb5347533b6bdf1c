package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/coinwatch/internal/alerting/metrics"
)

// Delivery is the outcome of a SafeSend.
type Delivery int

const (
	Delivered Delivery = iota
	// Dropped means the chat can never receive the message.
	Dropped
	// Failed means the send failed after the allowed retry.
	Failed
)

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	default:
		return "failed"
	}
}

// Config configures a Notifier.
type Config struct {
	// RetryAfter is used when a throttle carries no delay.
	RetryAfter  time.Duration
	Concurrency int
	Logger      *slog.Logger
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Notifier sends best-effort messages. It never returns an error to callers.
type Notifier struct {
	sender      Sender
	retryAfter  time.Duration
	concurrency int
	log         *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(sender Sender, cfg Config) *Notifier {
	n := &Notifier{
		sender:      sender,
		retryAfter:  cfg.RetryAfter,
		concurrency: cfg.Concurrency,
		log:         cfg.Logger,
		sleep:       cfg.Sleep,
	}
	if n.retryAfter <= 0 {
		n.retryAfter = 10 * time.Second
	}
	if n.concurrency <= 0 {
		n.concurrency = 20
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	n.log = n.log.With("component", "notifier")
	if n.sleep == nil {
		n.sleep = sleepContext
	}
	return n
}

// SafeSend sends text to chatID, retrying once after a throttle.
func (n *Notifier) SafeSend(ctx context.Context, chatID int64, text string) (d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("Send panicked", "chat_id", chatID, "panic", r)
			d = Failed
		}
		metrics.Notifications.WithLabelValues("message", d.String()).Inc()
	}()

	err := n.sender.Send(ctx, chatID, text)
	if err == nil {
		return Delivered
	}

	var ra *RetryAfterError
	if errors.As(err, &ra) {
		wait := ra.After
		if wait <= 0 {
			wait = n.retryAfter
		}
		n.log.Warn("Telegram rate limit, retrying", "chat_id", chatID, "retry_after", wait)
		if err := n.sleep(ctx, wait); err != nil {
			return Failed
		}
		err = n.sender.Send(ctx, chatID, text)
		if err == nil {
			return Delivered
		}
	}

	if errors.Is(err, ErrUndeliverable) {
		n.log.Info("Dropping undeliverable message", "chat_id", chatID, "error", err)
		return Dropped
	}
	n.log.Error("Send failed", "chat_id", chatID, "error", err)
	return Failed
}

// Broadcast sends text to every chat concurrently and returns the chats that
// received it.
func (n *Notifier) Broadcast(ctx context.Context, chatIDs []int64, text string) []int64 {
	return n.BroadcastFunc(ctx, chatIDs, func(int64) string { return text })
}

// BroadcastFunc is Broadcast with a per-chat message. An empty message skips
// the chat.
func (n *Notifier) BroadcastFunc(ctx context.Context, chatIDs []int64, render func(chatID int64) string) []int64 {
	results := make([]bool, len(chatIDs))

	g := new(errgroup.Group)
	g.SetLimit(n.concurrency)
	for i, id := range chatIDs {
		text := render(id)
		if text == "" {
			continue
		}
		g.Go(func() error {
			results[i] = n.SafeSend(ctx, id, text) == Delivered
			return nil
		})
	}
	_ = g.Wait()

	delivered := make([]int64, 0, len(chatIDs))
	for i, ok := range results {
		if ok {
			delivered = append(delivered, chatIDs[i])
		}
	}
	return delivered
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

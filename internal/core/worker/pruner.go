package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// Pruner deletes search sessions nobody has touched within the TTL.
type Pruner struct {
	ttl     time.Duration
	filters storage.FiltersRepository
	log     *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(ttl time.Duration, filters storage.FiltersRepository, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		ttl:     ttl,
		filters: filters,
		log:     log.With("component", "pruner"),
		now:     time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.ttl <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the TTL, between 1 minute and 1 hour
	interval := min(p.ttl/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) int {
	n, err := p.filters.DeleteStale(ctx, p.now().Add(-p.ttl))
	if err != nil {
		p.log.Error("Failed to prune search sessions", "error", err)
		return 0
	}
	if n > 0 {
		p.log.Info("Pruned search sessions", "count", n)
	}
	return n
}

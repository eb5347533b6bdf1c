package pricewatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
	"github.com/vietddude/coinwatch/internal/notify"
)

// ChunkSize is the number of tokens priced per upstream request.
const ChunkSize = 25

// PriceSource quotes current prices.
type PriceSource interface {
	CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error)
}

// Broadcaster sends per-chat messages and returns the chats that got one.
type Broadcaster interface {
	BroadcastFunc(ctx context.Context, chatIDs []int64, render func(chatID int64) string) []int64
}

// Detector fires one alert per crossing for every tracked coin.
type Detector struct {
	coins       storage.CoinRepository
	prices      PriceSource
	notifier    Broadcaster
	concurrency int
	log         *slog.Logger
}

func NewDetector(coins storage.CoinRepository, prices PriceSource, notifier Broadcaster, concurrency int, log *slog.Logger) *Detector {
	if concurrency <= 0 {
		concurrency = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		coins:       coins,
		prices:      prices,
		notifier:    notifier,
		concurrency: concurrency,
		log:         log.With("component", "pricewatch"),
	}
}

// Run prices every tracked coin and alerts the clients whose threshold was
// crossed. It returns the number of subscriptions notified.
func (d *Detector) Run(ctx context.Context) (int, error) {
	groups, err := d.coins.GroupTrackedByChain(ctx)
	if err != nil {
		return 0, fmt.Errorf("tracked coins: %w", err)
	}

	var notified atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for ch, addresses := range groups {
		d.log.Debug("Checking coin prices", "chain", ch, "coins", len(addresses))
		for _, chunk := range lo.Chunk(addresses, ChunkSize) {
			g.Go(func() error {
				n, err := d.checkChunk(ctx, ch, chunk)
				if err != nil {
					d.log.Error("Price check failed", "chain", ch, "coins", len(chunk), "error", err)
				}
				notified.Add(int64(n))
				return nil
			})
		}
	}
	_ = g.Wait()

	return int(notified.Load()), nil
}

func (d *Detector) checkChunk(ctx context.Context, ch domain.Chain, addresses []string) (int, error) {
	refs := lo.Map(addresses, func(a string, _ int) domain.CoinRef {
		return domain.CoinRef{Chain: ch, Address: a}
	})
	prices, err := d.prices.CoinPrices(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("coin prices: %w", err)
	}
	if len(prices) == 0 {
		return 0, nil
	}

	coins, err := d.coins.GetByAddresses(ctx, ch, addresses)
	if err != nil {
		return 0, fmt.Errorf("load coins: %w", err)
	}
	byAddress := lo.KeyBy(coins, func(c *domain.Coin) string { return strings.ToLower(c.Address) })

	total := 0
	for _, p := range prices {
		coin, ok := byAddress[strings.ToLower(p.Address)]
		if !ok {
			continue
		}
		n, err := d.notify(ctx, coin, p.Price)
		if err != nil {
			d.log.Error("Price alert failed", "coin", coin.Address, "chain", ch, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// notify alerts the pending subscriptions crossed by price and latches the
// delivered ones.
func (d *Detector) notify(ctx context.Context, coin *domain.Coin, price float64) (int, error) {
	pending, err := d.coins.PendingAlerts(ctx, coin.ID)
	if err != nil {
		return 0, fmt.Errorf("pending alerts for %s: %w", coin.Address, err)
	}
	eligible := lo.Filter(pending, func(s *domain.ClientCoin, _ int) bool { return s.Crossed(price) })
	if len(eligible) == 0 {
		return 0, nil
	}

	subs := lo.KeyBy(eligible, func(s *domain.ClientCoin) int64 { return s.ClientID })
	ids := lo.Keys(subs)
	delivered := d.notifier.BroadcastFunc(ctx, ids, func(id int64) string {
		return notify.PriceReachedText(coin, subs[id], price)
	})
	if len(delivered) == 0 {
		return 0, nil
	}

	keys := lo.Map(delivered, func(id int64, _ int) domain.ClientCoinKey {
		return domain.ClientCoinKey{ClientID: id, CoinID: coin.ID}
	})
	if err := d.coins.MarkNotified(ctx, keys); err != nil {
		return 0, fmt.Errorf("mark notified: %w", err)
	}
	d.log.Info("Price alerts sent", "coin", coin.Symbol, "price", price, "clients", len(delivered))
	return len(delivered), nil
}

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/coinwatch/internal/alerting/evaluate"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
	"github.com/vietddude/coinwatch/internal/notify"
)

// Broadcaster sends per-chat messages and returns the chats that got one.
type Broadcaster interface {
	BroadcastFunc(ctx context.Context, chatIDs []int64, render func(chatID int64) string) []int64
}

// WalletDispatcher tells subscribers about valued wallet transactions.
type WalletDispatcher struct {
	clients     storage.ClientRepository
	txs         storage.TransactionRepository
	notifier    Broadcaster
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

func NewWalletDispatcher(
	clients storage.ClientRepository,
	txs storage.TransactionRepository,
	notifier Broadcaster,
	concurrency int,
	log *slog.Logger,
) *WalletDispatcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &WalletDispatcher{
		clients:     clients,
		txs:         txs,
		notifier:    notifier,
		concurrency: concurrency,
		now:         time.Now,
		log:         log.With("component", "dispatch"),
	}
}

// Dispatch notifies each candidate's subscribers whose alert filter accepts
// it, then marks the delivered transactions as sent.
func (d *WalletDispatcher) Dispatch(ctx context.Context, candidates []evaluate.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	subscribers, err := d.subscribers(ctx, candidates)
	if err != nil {
		return 0, err
	}

	var (
		mu   sync.Mutex
		sent []domain.TxKey
	)
	now := d.now()
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, c := range candidates {
		g.Go(func() error {
			age := c.Coin.Age(now)
			eligible := lo.Filter(subscribers[c.Data.WalletID], func(cl *domain.Client, _ int) bool {
				return cl.Filter.Allows(c.Price.Price, c.Price.MarketCap, age)
			})
			if len(eligible) == 0 {
				return nil
			}

			text := notify.WalletBuyText(c.Data.WalletAddress, c.Coin, c.Data.TokenAmount, c.Price)
			ids := lo.Map(eligible, func(cl *domain.Client, _ int) int64 { return cl.ID })
			delivered := d.notifier.BroadcastFunc(ctx, ids, func(int64) string { return text })
			if len(delivered) == 0 {
				return nil
			}

			mu.Lock()
			sent = append(sent, domain.TxKey{WalletID: c.Data.WalletID, Signature: c.Data.Signature})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := d.txs.MarkSent(ctx, sent); err != nil {
		return len(sent), fmt.Errorf("mark sent: %w", err)
	}
	d.log.Info("Wallet alerts dispatched", "candidates", len(candidates), "sent", len(sent))
	return len(sent), nil
}

func (d *WalletDispatcher) subscribers(ctx context.Context, candidates []evaluate.Candidate) (map[int64][]*domain.Client, error) {
	walletIDs := lo.Uniq(lo.Map(candidates, func(c evaluate.Candidate, _ int) int64 { return c.Data.WalletID }))
	out := make(map[int64][]*domain.Client, len(walletIDs))
	for _, id := range walletIDs {
		clients, err := d.clients.ListByWallet(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("subscribers of wallet %d: %w", id, err)
		}
		out[id] = clients
	}
	return out, nil
}

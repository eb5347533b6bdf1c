package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/coinwatch/internal/alerting/dispatch"
	"github.com/vietddude/coinwatch/internal/alerting/evaluate"
	"github.com/vietddude/coinwatch/internal/alerting/ingest"
	"github.com/vietddude/coinwatch/internal/alerting/pricewatch"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

const (
	CoinsCycle   = "coins"
	WalletsCycle = "wallets"
)

// WalletPipeline is the wallet cycle: ingest, value, dispatch.
type WalletPipeline struct {
	Wallets     storage.WalletRepository
	Ingestor    *ingest.Ingestor
	Evaluator   *evaluate.Evaluator
	Dispatcher  *dispatch.WalletDispatcher
	Concurrency int
}

// Run processes every tracked wallet once.
func (p *WalletPipeline) Run(ctx context.Context, log *slog.Logger) error {
	wallets, err := p.Wallets.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("tracked wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil
	}

	data := p.Ingestor.IngestAll(ctx, wallets)
	if len(data) == 0 {
		log.Info("There are no new transactions", "wallets", len(wallets))
		return nil
	}

	byToken := lo.GroupBy(data, func(d domain.TransactionData) string { return d.TokenAddress })

	var (
		mu         sync.Mutex
		candidates []evaluate.Candidate
	)
	g := new(errgroup.Group)
	g.SetLimit(max(p.Concurrency, 1))
	for token, txs := range byToken {
		g.Go(func() error {
			got, err := p.Evaluator.Evaluate(ctx, token, txs)
			if err != nil {
				log.Error("Evaluate token failed", "token", token, "error", err)
				return nil
			}
			mu.Lock()
			candidates = append(candidates, got...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sent, err := p.Dispatcher.Dispatch(ctx, candidates)
	if err != nil {
		return err
	}
	log.Info("Wallet cycle done",
		"wallets", len(wallets),
		"transactions", len(data),
		"tokens", len(byToken),
		"candidates", len(candidates),
		"sent", sent,
	)
	return nil
}

// CoinPipeline is the coin price cycle.
type CoinPipeline struct {
	Detector *pricewatch.Detector
}

func (p *CoinPipeline) Run(ctx context.Context, log *slog.Logger) error {
	n, err := p.Detector.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("Coin cycle done", "notified", n)
	return nil
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/coinwatch/internal/alerting/metrics"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// SeenCache is a fast skip-set of signatures already ingested.
type SeenCache interface {
	SeenSignatures(ctx context.Context, walletID int64, sigs []string) ([]string, error)
	MarkSeen(ctx context.Context, walletID int64, sigs []string) error
}

// Config configures an Ingestor.
type Config struct {
	SignaturesLimit int
	// Concurrency bounds both wallets in flight and transaction fetches per wallet.
	Concurrency int
	Logger      *slog.Logger
}

// Ingestor pulls new wallet transactions and records every new signature once.
type Ingestor struct {
	source chain.TransactionSource
	txs    storage.TransactionRepository
	cache  SeenCache
	limit  int
	conc   int
	log    *slog.Logger
}

// New creates an Ingestor. cache may be nil.
func New(source chain.TransactionSource, txs storage.TransactionRepository, cache SeenCache, cfg Config) *Ingestor {
	if cfg.SignaturesLimit <= 0 {
		cfg.SignaturesLimit = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		source: source,
		txs:    txs,
		cache:  cache,
		limit:  cfg.SignaturesLimit,
		conc:   cfg.Concurrency,
		log:    log.With("component", "ingest"),
	}
}

// IngestNewTransactions fetches the wallet's latest signatures, stores a row
// for each one not seen before and returns the parsed balance changes.
func (i *Ingestor) IngestNewTransactions(ctx context.Context, wallet *domain.Wallet) ([]domain.TransactionData, error) {
	sigs, err := i.source.Signatures(ctx, wallet.Address, i.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch signatures: %w", err)
	}
	sigs = lo.Uniq(sigs)
	if len(sigs) == 0 {
		return nil, nil
	}

	fresh, err := i.unseen(ctx, wallet.ID, sigs)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	fetched := make([]*domain.TransactionData, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.conc)
	for idx, sig := range fresh {
		g.Go(func() error {
			data, err := i.source.Transaction(gctx, wallet.Address, sig)
			if err != nil {
				i.log.Warn("Fetch transaction failed", "wallet", wallet.Address, "signature", sig, "error", err)
				return nil
			}
			fetched[idx] = data
			return nil
		})
	}
	_ = g.Wait()

	var (
		enriched     []domain.TransactionData
		records      []*domain.Transaction
		placeholders []string
	)
	for idx, data := range fetched {
		if data == nil {
			placeholders = append(placeholders, fresh[idx])
			continue
		}
		d := *data
		d.WalletID = wallet.ID
		d.WalletAddress = wallet.Address
		d.Signature = fresh[idx]
		enriched = append(enriched, d)
		records = append(records, d.Record())
	}

	if err := i.txs.SaveBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("save transactions: %w", err)
	}
	metrics.TransactionsIngested.WithLabelValues("enriched").Add(float64(len(records)))

	// Unsaved placeholders stay unseen and are retried next cycle.
	seen := fresh
	if err := i.txs.SavePlaceholders(ctx, wallet.ID, placeholders); err != nil {
		i.log.Error("Save placeholders failed", "wallet", wallet.Address, "count", len(placeholders), "error", err)
		seen = lo.Without(fresh, placeholders...)
	} else {
		metrics.TransactionsIngested.WithLabelValues("placeholder").Add(float64(len(placeholders)))
	}

	i.markSeen(ctx, wallet.ID, seen)

	i.log.Debug("Ingested wallet transactions",
		"wallet", wallet.Address,
		"new", len(fresh),
		"enriched", len(enriched),
		"placeholders", len(placeholders),
	)
	return enriched, nil
}

// unseen filters sigs through the cache, then storage.
func (i *Ingestor) unseen(ctx context.Context, walletID int64, sigs []string) ([]string, error) {
	candidates := sigs
	if i.cache != nil {
		seen, err := i.cache.SeenSignatures(ctx, walletID, sigs)
		if err != nil {
			i.log.Warn("Signature cache unavailable", "wallet_id", walletID, "error", err)
		} else {
			candidates, _ = lo.Difference(sigs, seen)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	stored, err := i.txs.ExistingSignatures(ctx, walletID, candidates)
	if err != nil {
		return nil, fmt.Errorf("existing signatures: %w", err)
	}
	if len(stored) > 0 {
		i.markSeen(ctx, walletID, stored)
	}
	fresh, _ := lo.Difference(candidates, stored)
	return fresh, nil
}

func (i *Ingestor) markSeen(ctx context.Context, walletID int64, sigs []string) {
	if i.cache == nil || len(sigs) == 0 {
		return
	}
	if err := i.cache.MarkSeen(ctx, walletID, sigs); err != nil {
		i.log.Warn("Mark signatures seen failed", "wallet_id", walletID, "error", err)
	}
}

// IngestAll ingests every wallet concurrently. A failing wallet is logged and
// skipped.
func (i *Ingestor) IngestAll(ctx context.Context, wallets []*domain.Wallet) []domain.TransactionData {
	results := make([][]domain.TransactionData, len(wallets))

	g := new(errgroup.Group)
	g.SetLimit(i.conc)
	for idx, w := range wallets {
		g.Go(func() error {
			txs, err := i.IngestNewTransactions(ctx, w)
			if err != nil {
				i.log.Error("Wallet ingestion failed", "wallet", w.Address, "error", err)
				return nil
			}
			results[idx] = txs
			return nil
		})
	}
	_ = g.Wait()

	return lo.Flatten(results)
}

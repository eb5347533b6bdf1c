package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// PriceLookup provides the quotes used to value a wallet transaction.
type PriceLookup interface {
	HistoricalPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PriceHistory, error)
	SpotPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PricePoint, error)
}

// CoinResolver returns the coin row for a token, creating it if needed.
type CoinResolver interface {
	GetOrCreate(ctx context.Context, chain domain.Chain, address string) (*domain.Coin, error)
}

// Candidate is a valued transaction eligible for wallet alerts.
type Candidate struct {
	Data  domain.TransactionData
	Tx    *domain.Transaction
	Coin  *domain.Coin
	Price domain.PricePoint
}

// Evaluator values new wallet transactions of one token and stores them.
type Evaluator struct {
	prices PriceLookup
	coins  CoinResolver
	txs    storage.TransactionRepository
	log    *slog.Logger
}

func New(prices PriceLookup, coins CoinResolver, txs storage.TransactionRepository, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{prices: prices, coins: coins, txs: txs, log: log.With("component", "evaluate")}
}

// Evaluate prices txs, all of which move tokenAddress, persists them and
// returns the ones with a non-negative amount.
func (e *Evaluator) Evaluate(ctx context.Context, tokenAddress string, txs []domain.TransactionData) ([]Candidate, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	point, err := e.price(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	if point == nil {
		e.log.Info("No price for token, storing raw transactions", "token", tokenAddress, "count", len(txs))
		return nil, e.saveRaw(ctx, txs)
	}

	coin, err := e.coins.GetOrCreate(ctx, domain.ChainSolana, tokenAddress)
	if errors.Is(err, domain.ErrCoinNotFound) {
		e.log.Info("Unknown token, storing raw transactions", "token", tokenAddress, "count", len(txs))
		return nil, e.saveRaw(ctx, txs)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve coin %s: %w", tokenAddress, err)
	}

	records := make([]*domain.Transaction, len(txs))
	for i, d := range txs {
		rec := d.Record()
		rec.CoinID = coin.ID
		rec.Price = point.Price
		rec.TotalCost = d.TokenAmount * point.Price
		records[i] = rec
	}
	if err := e.txs.SaveBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("save valued transactions: %w", err)
	}

	var out []Candidate
	for i, d := range txs {
		if d.TokenAmount < 0 {
			continue
		}
		out = append(out, Candidate{Data: d, Tx: records[i], Coin: coin, Price: *point})
	}
	return out, nil
}

// price prefers the latest historical point and falls back to a spot quote.
func (e *Evaluator) price(ctx context.Context, token string) (*domain.PricePoint, error) {
	history, err := e.prices.HistoricalPrice(ctx, domain.ChainSolana, token)
	if err != nil {
		return nil, fmt.Errorf("historical price: %w", err)
	}
	if history != nil {
		if p, ok := history.Latest(); ok {
			return &p, nil
		}
	}
	spot, err := e.prices.SpotPrice(ctx, domain.ChainSolana, token)
	if err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}
	return spot, nil
}

func (e *Evaluator) saveRaw(ctx context.Context, txs []domain.TransactionData) error {
	records := make([]*domain.Transaction, len(txs))
	for i, d := range txs {
		records[i] = d.Record()
	}
	if err := e.txs.SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save raw transactions: %w", err)
	}
	return nil
}

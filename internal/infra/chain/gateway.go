package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// TransactionSource reads wallet history.
type TransactionSource interface {
	Signatures(ctx context.Context, address string, limit int) ([]string, error)
	Transaction(ctx context.Context, walletAddress, signature string) (*domain.TransactionData, error)
}

// PriceSource quotes current and recent prices.
type PriceSource interface {
	CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error)
	HistoricalPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PriceHistory, error)
}

// MarketSource provides token metadata and spot quotes.
type MarketSource interface {
	CoinInfo(ctx context.Context, chain domain.Chain, addresses []string) ([]domain.CoinInfo, error)
	SpotPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PricePoint, error)
}

// TokenListSource lists tokens for search.
type TokenListSource interface {
	CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error)
}

// Gateway is the single entry point to every upstream. Upstream failures on
// enrichment calls are logged and surface as "no data".
type Gateway struct {
	txs    TransactionSource
	txsAlt TransactionSource
	prices PriceSource
	market MarketSource
	tokens TokenListSource
	log    *slog.Logger
}

// GatewayConfig lists the sources. TransactionsFallback is optional.
type GatewayConfig struct {
	Transactions         TransactionSource
	TransactionsFallback TransactionSource
	Prices               PriceSource
	Market               MarketSource
	Tokens               TokenListSource
	Logger               *slog.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		txs:    cfg.Transactions,
		txsAlt: cfg.TransactionsFallback,
		prices: cfg.Prices,
		market: cfg.Market,
		tokens: cfg.Tokens,
		log:    log.With("component", "gateway"),
	}
}

// Signatures returns the newest signatures of an address. An error is
// returned only when every transaction source failed.
func (g *Gateway) Signatures(ctx context.Context, address string, limit int) ([]string, error) {
	sigs, err := g.txs.Signatures(ctx, address, limit)
	if err == nil || g.txsAlt == nil || ctx.Err() != nil {
		return sigs, err
	}
	g.log.Warn("Primary signature source failed, using fallback", "address", address, "error", err)
	sigs, altErr := g.txsAlt.Signatures(ctx, address, limit)
	if altErr != nil {
		return nil, fmt.Errorf("signatures for %s: %w", address, altErr)
	}
	return sigs, nil
}

// Transaction returns the parsed balance change, or nil when unavailable.
func (g *Gateway) Transaction(ctx context.Context, walletAddress, signature string) (*domain.TransactionData, error) {
	data, err := g.txs.Transaction(ctx, walletAddress, signature)
	if err != nil && g.txsAlt != nil && ctx.Err() == nil {
		data, err = g.txsAlt.Transaction(ctx, walletAddress, signature)
	}
	if err != nil {
		g.log.Warn("Transaction unavailable", "signature", signature, "error", err)
		return nil, nil
	}
	return data, nil
}

// CoinPrices returns quotes for the refs that have one.
func (g *Gateway) CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error) {
	prices, err := g.prices.CoinPrices(ctx, refs)
	if err != nil {
		g.log.Warn("Coin prices unavailable", "count", len(refs), "error", err)
		return nil, nil
	}
	return prices, nil
}

// HistoricalPrice returns the recent series for a token, or nil.
func (g *Gateway) HistoricalPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PriceHistory, error) {
	h, err := g.prices.HistoricalPrice(ctx, chain, address)
	if err != nil {
		g.log.Warn("Historical price unavailable", "chain", chain, "address", address, "error", err)
		return nil, nil
	}
	return h, nil
}

// SpotPrice returns a single current quote with market cap, or nil.
func (g *Gateway) SpotPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PricePoint, error) {
	p, err := g.market.SpotPrice(ctx, chain, address)
	if err != nil {
		g.log.Warn("Spot price unavailable", "chain", chain, "address", address, "error", err)
		return nil, nil
	}
	return p, nil
}

// CoinInfo returns metadata for the known tokens among addresses.
func (g *Gateway) CoinInfo(ctx context.Context, chain domain.Chain, addresses []string) ([]domain.CoinInfo, error) {
	infos, err := g.market.CoinInfo(ctx, chain, addresses)
	if err != nil {
		g.log.Warn("Coin info unavailable", "chain", chain, "count", len(addresses), "error", err)
		return nil, nil
	}
	return infos, nil
}

// CoinList returns a page of the token list.
func (g *Gateway) CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error) {
	coins, err := g.tokens.CoinList(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("coin list: %w", err)
	}
	return coins, nil
}

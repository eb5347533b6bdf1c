package evaluate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
)

type fakePrices struct {
	history *domain.PriceHistory
	spot    *domain.PricePoint
	spotHit int
}

func (f *fakePrices) HistoricalPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PriceHistory, error) {
	return f.history, nil
}

func (f *fakePrices) SpotPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PricePoint, error) {
	f.spotHit++
	return f.spot, nil
}

type fakeCoins struct {
	coin *domain.Coin
}

func (f fakeCoins) GetOrCreate(ctx context.Context, ch domain.Chain, address string) (*domain.Coin, error) {
	if f.coin == nil {
		return nil, fmt.Errorf("%s: %w", address, domain.ErrCoinNotFound)
	}
	return f.coin, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func txData() []domain.TransactionData {
	return []domain.TransactionData{
		{WalletID: 1, WalletAddress: "W1", TokenAddress: "TKN1", TokenAmount: 120, Timestamp: now, Signature: "sigA"},
		{WalletID: 1, WalletAddress: "W1", TokenAddress: "TKN1", TokenAmount: -5, Timestamp: now, Signature: "sigC"},
	}
}

func TestEvaluateValuesAndFilters(t *testing.T) {
	ctx := context.Background()
	txs := memory.NewTxRepo(memory.NewMemoryStorage())
	prices := &fakePrices{history: &domain.PriceHistory{Points: []domain.PricePoint{
		{Price: 1, MarketCap: 10, Timestamp: now.Add(-10 * time.Minute)},
		{Price: 2, MarketCap: 20, Timestamp: now},
	}}}
	coin := &domain.Coin{ID: 7, Address: "TKN1", Chain: domain.ChainSolana, Symbol: "TK"}
	e := New(prices, fakeCoins{coin: coin}, txs, nil)

	got, err := e.Evaluate(ctx, "TKN1", txData())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "sigA", got[0].Data.Signature)
	assert.Equal(t, 2.0, got[0].Price.Price)
	assert.Equal(t, 20.0, got[0].Price.MarketCap)
	assert.Equal(t, coin, got[0].Coin)
	assert.Equal(t, 0, prices.spotHit)

	a := txs.Get(1, "sigA")
	require.NotNil(t, a)
	assert.Equal(t, int64(7), a.CoinID)
	assert.Equal(t, 240.0, a.TotalCost)
	c := txs.Get(1, "sigC")
	require.NotNil(t, c)
	assert.Equal(t, -10.0, c.TotalCost)
}

func TestEvaluateFallsBackToSpot(t *testing.T) {
	txs := memory.NewTxRepo(memory.NewMemoryStorage())
	prices := &fakePrices{spot: &domain.PricePoint{Price: 0.5, MarketCap: 1000}}
	e := New(prices, fakeCoins{coin: &domain.Coin{ID: 7}}, txs, nil)

	got, err := e.Evaluate(context.Background(), "TKN1", txData()[:1])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.5, got[0].Price.Price)
	assert.Equal(t, 1, prices.spotHit)
}

func TestEvaluateWithoutPriceStoresRaw(t *testing.T) {
	txs := memory.NewTxRepo(memory.NewMemoryStorage())
	e := New(&fakePrices{}, fakeCoins{coin: &domain.Coin{ID: 7}}, txs, nil)

	got, err := e.Evaluate(context.Background(), "TKN1", txData())
	require.NoError(t, err)
	assert.Empty(t, got)

	a := txs.Get(1, "sigA")
	require.NotNil(t, a)
	assert.Equal(t, int64(0), a.CoinID)
	assert.Equal(t, 120.0, a.Amount)
}

func TestEvaluateUnknownCoinStoresRaw(t *testing.T) {
	txs := memory.NewTxRepo(memory.NewMemoryStorage())
	prices := &fakePrices{spot: &domain.PricePoint{Price: 1}}
	e := New(prices, fakeCoins{}, txs, nil)

	got, err := e.Evaluate(context.Background(), "TKN1", txData())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, txs.Len())
}

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
)

type fakeMarket struct {
	infos []domain.CoinInfo
	calls int
}

func (f *fakeMarket) CoinInfo(ctx context.Context, ch domain.Chain, addresses []string) ([]domain.CoinInfo, error) {
	f.calls++
	return f.infos, nil
}

func (f *fakeMarket) SpotPrice(ctx context.Context, ch domain.Chain, address string) (*domain.PricePoint, error) {
	return nil, nil
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	market := &fakeMarket{infos: []domain.CoinInfo{{
		Chain: domain.ChainSolana, Address: "TKN1", Symbol: "TK", Name: "Token", PairAddress: "POOL1", CreatedAt: created,
	}}}
	r := NewResolver(market, memory.NewCoinRepo(memory.NewMemoryStorage()))

	coin, err := r.GetOrCreate(ctx, domain.ChainSolana, "TKN1")
	require.NoError(t, err)
	assert.Equal(t, "TK", coin.Symbol)
	assert.Equal(t, "POOL1", coin.PairAddress)
	assert.Equal(t, created, coin.CreatedAt)

	again, err := r.GetOrCreate(ctx, domain.ChainSolana, "TKN1")
	require.NoError(t, err)
	assert.Equal(t, coin.ID, again.ID)
	assert.Equal(t, 1, market.calls)

	_, err = r.GetOrCreate(ctx, domain.ChainSolana, "UNKNOWN")
	assert.ErrorIs(t, err, domain.ErrCoinNotFound)
}

func TestPairAddressCached(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{infos: []domain.CoinInfo{{Chain: domain.ChainSolana, Address: "TKN1", PairAddress: "POOL1"}}}
	r := NewResolver(market, memory.NewCoinRepo(memory.NewMemoryStorage()))

	pool, err := r.PairAddress(ctx, domain.ChainSolana, "TKN1")
	require.NoError(t, err)
	assert.Equal(t, "POOL1", pool)

	pool, err = r.PairAddress(ctx, domain.ChainSolana, "TKN1")
	require.NoError(t, err)
	assert.Equal(t, "POOL1", pool)
	assert.Equal(t, 1, market.calls)
}

package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// Resolver creates coin rows on first sight from market metadata and caches
// pool addresses.
type Resolver struct {
	market chain.MarketSource
	coins  storage.CoinRepository

	mu    sync.RWMutex
	pools map[domain.CoinRef]string
}

func NewResolver(market chain.MarketSource, coins storage.CoinRepository) *Resolver {
	return &Resolver{
		market: market,
		coins:  coins,
		pools:  make(map[domain.CoinRef]string),
	}
}

// GetOrCreate returns the stored coin, creating it from market metadata when
// it is unknown. Returns domain.ErrCoinNotFound if the market has no listing.
func (r *Resolver) GetOrCreate(ctx context.Context, ch domain.Chain, address string) (*domain.Coin, error) {
	address = strings.TrimSpace(address)
	coin, err := r.coins.GetByAddress(ctx, address, ch)
	if err != nil {
		return nil, fmt.Errorf("get coin: %w", err)
	}
	if coin != nil {
		return coin, nil
	}

	info, err := r.lookup(ctx, ch, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s on %s: %w", address, ch, domain.ErrCoinNotFound)
	}

	coin, err = r.coins.GetOrCreate(ctx, &domain.Coin{
		Address:     address,
		Chain:       ch,
		Symbol:      info.Symbol,
		Name:        info.Name,
		Logo:        info.Logo,
		PairAddress: info.PairAddress,
		CreatedAt:   info.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create coin: %w", err)
	}
	return coin, nil
}

// PairAddress returns the token's main pool, or "" when none is listed.
func (r *Resolver) PairAddress(ctx context.Context, ch domain.Chain, token string) (string, error) {
	ref := domain.CoinRef{Chain: ch, Address: token}
	r.mu.RLock()
	pool, ok := r.pools[ref]
	r.mu.RUnlock()
	if ok {
		return pool, nil
	}

	coin, err := r.coins.GetByAddress(ctx, token, ch)
	if err != nil {
		return "", fmt.Errorf("get coin: %w", err)
	}
	if coin != nil && coin.PairAddress != "" {
		pool = coin.PairAddress
	} else {
		info, err := r.lookup(ctx, ch, token)
		if err != nil {
			return "", err
		}
		if info == nil {
			return "", nil
		}
		pool = info.PairAddress
	}

	if pool != "" {
		r.mu.Lock()
		r.pools[ref] = pool
		r.mu.Unlock()
	}
	return pool, nil
}

func (r *Resolver) lookup(ctx context.Context, ch domain.Chain, address string) (*domain.CoinInfo, error) {
	infos, err := r.market.CoinInfo(ctx, ch, []string{address})
	if err != nil {
		return nil, fmt.Errorf("coin info: %w", err)
	}
	for i := range infos {
		if strings.EqualFold(infos[i].Address, address) {
			return &infos[i], nil
		}
	}
	return nil, nil
}

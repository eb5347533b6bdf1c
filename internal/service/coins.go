package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// TrackedCoin is a subscription with its coin.
type TrackedCoin struct {
	Sub  *domain.ClientCoin
	Coin *domain.Coin
}

// AddCoin subscribes the client to a token, creating the coin from market
// metadata on first sight.
func (s *Service) AddCoin(ctx context.Context, clientID int64, address string, ch domain.Chain) (*domain.Coin, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrCoinNotFound
	}
	if _, err := s.Client(ctx, clientID); err != nil {
		return nil, err
	}
	coin, err := s.coins.GetOrCreate(ctx, ch, address)
	if err != nil {
		return nil, err
	}
	if err := s.store.Coins.Subscribe(ctx, &domain.ClientCoin{ClientID: clientID, CoinID: coin.ID}); err != nil {
		return nil, err
	}
	s.log.Info("Coin added", "client_id", clientID, "coin", coin.Address, "chain", coin.Chain)
	return coin, nil
}

// RemoveCoin drops the client's subscription to a coin.
func (s *Service) RemoveCoin(ctx context.Context, clientID, coinID int64) error {
	return s.store.Coins.Unsubscribe(ctx, clientID, coinID)
}

// ReplaceCoin swaps a tracked coin for another token. Thresholds are not
// carried over since they were relative to the old coin's price.
func (s *Service) ReplaceCoin(ctx context.Context, clientID, oldCoinID int64, address string, ch domain.Chain) (*domain.Coin, error) {
	coin, err := s.AddCoin(ctx, clientID, address, ch)
	if err != nil {
		return nil, err
	}
	if coin.ID == oldCoinID {
		return coin, nil
	}
	if err := s.RemoveCoin(ctx, clientID, oldCoinID); err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}
	return coin, nil
}

// Coins returns the client's coin subscriptions.
func (s *Service) Coins(ctx context.Context, clientID int64) ([]TrackedCoin, error) {
	subs, coins, err := s.store.Coins.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	out := make([]TrackedCoin, len(subs))
	for i := range subs {
		out[i] = TrackedCoin{Sub: subs[i], Coin: coins[i]}
	}
	return out, nil
}

// Coin returns one of the client's subscriptions.
func (s *Service) Coin(ctx context.Context, clientID, coinID int64) (*TrackedCoin, error) {
	tracked, err := s.Coins(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for i := range tracked {
		if tracked[i].Coin.ID == coinID {
			return &tracked[i], nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

// TrackCoin sets the alert threshold relative to the current price and
// re-arms the notification.
func (s *Service) TrackCoin(ctx context.Context, clientID, coinID int64, dir domain.Direction, percentage float64) (*domain.ClientCoin, error) {
	if percentage <= 0 {
		return nil, fmt.Errorf("percentage must be positive, got %v", percentage)
	}
	if dir == domain.DirectionDown && percentage >= 100 {
		return nil, fmt.Errorf("a drop of %v%% is not reachable", percentage)
	}
	tracked, err := s.Coin(ctx, clientID, coinID)
	if err != nil {
		return nil, err
	}

	price, err := s.currentPrice(ctx, tracked.Coin)
	if err != nil {
		return nil, err
	}

	sub := &domain.ClientCoin{
		ClientID:   clientID,
		CoinID:     coinID,
		Direction:  dir,
		StartPrice: price,
		Percentage: percentage,
	}
	if err := s.store.Coins.UpdateTracking(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info("Coin tracking updated",
		"client_id", clientID,
		"coin", tracked.Coin.Address,
		"direction", dir,
		"percentage", percentage,
		"start_price", price,
	)
	return sub, nil
}

func (s *Service) currentPrice(ctx context.Context, coin *domain.Coin) (float64, error) {
	prices, err := s.gw.CoinPrices(ctx, []domain.CoinRef{{Chain: coin.Chain, Address: coin.Address}})
	if err != nil {
		return 0, fmt.Errorf("coin price: %w", err)
	}
	for _, p := range prices {
		if p.Price > 0 {
			return p.Price, nil
		}
	}
	spot, err := s.gw.SpotPrice(ctx, coin.Chain, coin.Address)
	if err != nil {
		return 0, fmt.Errorf("spot price: %w", err)
	}
	if spot == nil || spot.Price <= 0 {
		return 0, ErrPriceUnavailable
	}
	return spot.Price, nil
}

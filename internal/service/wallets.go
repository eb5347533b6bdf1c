package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// AddWallet verifies the address on chain and subscribes the client to it.
// A malformed address is rejected with domain.ErrInvalidAddress before any
// upstream call, one without any signature with domain.ErrWalletNotFound.
func (s *Service) AddWallet(ctx context.Context, clientID int64, address string, ch domain.Chain) (*domain.Wallet, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrWalletNotFound
	}
	if !ch.SupportsWallets() {
		return nil, fmt.Errorf("%w: wallets on %s", domain.ErrUnsupportedChain, ch)
	}
	if err := domain.ValidateWalletAddress(ch, address); err != nil {
		return nil, err
	}
	if _, err := s.Client(ctx, clientID); err != nil {
		return nil, err
	}

	wallet, err := s.store.Wallets.GetByAddress(ctx, address, ch)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if wallet == nil {
		if err := s.verifyWallet(ctx, address); err != nil {
			return nil, err
		}
		wallet, err = s.store.Wallets.GetOrCreate(ctx, &domain.Wallet{Address: address, Chain: ch})
		if err != nil {
			return nil, fmt.Errorf("create wallet: %w", err)
		}
	}

	if err := s.store.Wallets.Subscribe(ctx, clientID, wallet.ID); err != nil {
		return nil, err
	}
	s.log.Info("Wallet added", "client_id", clientID, "wallet", wallet.Address, "chain", wallet.Chain)
	return wallet, nil
}

func (s *Service) verifyWallet(ctx context.Context, address string) error {
	sigs, err := s.gw.Signatures(ctx, address, 1)
	if err != nil {
		return fmt.Errorf("verify wallet: %w", err)
	}
	if len(sigs) == 0 {
		return fmt.Errorf("%s: %w", address, domain.ErrWalletNotFound)
	}
	return nil
}

// RemoveWallet unsubscribes the client. The wallet row is kept.
func (s *Service) RemoveWallet(ctx context.Context, clientID, walletID int64) error {
	return s.store.Wallets.Unsubscribe(ctx, clientID, walletID)
}

// ReplaceWallet swaps a tracked wallet for another address. The old
// subscription is only dropped once the new one is in place.
func (s *Service) ReplaceWallet(ctx context.Context, clientID, oldWalletID int64, address string, ch domain.Chain) (*domain.Wallet, error) {
	wallet, err := s.AddWallet(ctx, clientID, address, ch)
	if err != nil {
		return nil, err
	}
	if wallet.ID == oldWalletID {
		return wallet, nil
	}
	if err := s.RemoveWallet(ctx, clientID, oldWalletID); err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}
	return wallet, nil
}

// Wallets returns the wallets the client tracks.
func (s *Service) Wallets(ctx context.Context, clientID int64) ([]*domain.Wallet, error) {
	return s.store.Wallets.ListByClient(ctx, clientID)
}

// Wallet returns one of the client's wallets.
func (s *Service) Wallet(ctx context.Context, clientID, walletID int64) (*domain.Wallet, error) {
	wallets, err := s.Wallets(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if w.ID == walletID {
			return w, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

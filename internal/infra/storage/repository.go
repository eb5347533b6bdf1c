package storage

import (
	"context"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// ClientRepository handles Telegram user storage.
type ClientRepository interface {
	// Upsert creates the client or refreshes its profile fields. Settings are kept.
	Upsert(ctx context.Context, client *domain.Client) (created bool, err error)

	// Get retrieves a client, or nil when absent.
	Get(ctx context.Context, id int64) (*domain.Client, error)

	// SetAlertsEnabled toggles notifications for a client
	SetAlertsEnabled(ctx context.Context, id int64, enabled bool) error

	// UpdateFilter replaces the client's wallet alert filter
	UpdateFilter(ctx context.Context, id int64, filter domain.AlertFilter) error

	// ListByWallet returns clients tracking the wallet that have alerts enabled.
	ListByWallet(ctx context.Context, walletID int64) ([]*domain.Client, error)

	Count(ctx context.Context) (int, error)
}

// WalletRepository handles wallet and wallet subscription storage.
type WalletRepository interface {
	// GetByAddress retrieves a wallet, or nil when absent.
	GetByAddress(ctx context.Context, address string, chain domain.Chain) (*domain.Wallet, error)

	// GetOrCreate returns the existing wallet or inserts a new one.
	GetOrCreate(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error)

	// ListTracked returns wallets with at least one subscriber that has alerts enabled.
	ListTracked(ctx context.Context) ([]*domain.Wallet, error)

	// ListByClient returns the wallets a client tracks.
	ListByClient(ctx context.Context, clientID int64) ([]*domain.Wallet, error)

	// Subscribe links a client to a wallet. Returns ErrDuplicateSubscription if linked.
	Subscribe(ctx context.Context, clientID, walletID int64) error

	// Unsubscribe removes the link. Returns ErrSubscriptionNotFound if absent.
	Unsubscribe(ctx context.Context, clientID, walletID int64) error

	Count(ctx context.Context) (int, error)
}

// CoinRepository handles coin and coin subscription storage.
type CoinRepository interface {
	// GetByAddress retrieves a coin, or nil when absent.
	GetByAddress(ctx context.Context, address string, chain domain.Chain) (*domain.Coin, error)

	// GetByAddresses retrieves the known coins among addresses.
	GetByAddresses(ctx context.Context, chain domain.Chain, addresses []string) ([]*domain.Coin, error)

	// GetOrCreate returns the existing coin or inserts a new one.
	GetOrCreate(ctx context.Context, coin *domain.Coin) (*domain.Coin, error)

	// GroupTrackedByChain returns addresses of coins with at least one subscriber, keyed by chain.
	GroupTrackedByChain(ctx context.Context) (map[domain.Chain][]string, error)

	// ListByClient returns a client's subscriptions with their coins.
	ListByClient(ctx context.Context, clientID int64) ([]*domain.ClientCoin, []*domain.Coin, error)

	// Subscribe links a client to a coin. Returns ErrDuplicateSubscription if linked.
	Subscribe(ctx context.Context, sub *domain.ClientCoin) error

	// Unsubscribe removes the link. Returns ErrSubscriptionNotFound if absent.
	Unsubscribe(ctx context.Context, clientID, coinID int64) error

	// UpdateTracking replaces the threshold and resets the notification latch.
	UpdateTracking(ctx context.Context, sub *domain.ClientCoin) error

	// PendingAlerts returns un-notified subscriptions on a coin whose client has alerts enabled.
	PendingAlerts(ctx context.Context, coinID int64) ([]*domain.ClientCoin, error)

	// MarkNotified sets the notification latch for the given pairs.
	MarkNotified(ctx context.Context, keys []domain.ClientCoinKey) error

	Count(ctx context.Context) (int, error)
}

// TransactionRepository handles wallet transaction storage.
type TransactionRepository interface {
	// ExistingSignatures returns the subset of sigs already stored for the wallet.
	ExistingSignatures(ctx context.Context, walletID int64, sigs []string) ([]string, error)

	// SaveBatch upserts rows on (wallet, signature). Sent is never cleared.
	SaveBatch(ctx context.Context, txs []*domain.Transaction) error

	// SavePlaceholders inserts bare rows for signatures that are not stored yet.
	SavePlaceholders(ctx context.Context, walletID int64, sigs []string) error

	// MarkSent flags rows as notified.
	MarkSent(ctx context.Context, keys []domain.TxKey) error
}

// FiltersRepository handles coin search sessions.
type FiltersRepository interface {
	// Get retrieves a session, or nil when absent.
	Get(ctx context.Context, clientID int64) (*domain.ClientFilters, error)

	// Save creates or replaces a session.
	Save(ctx context.Context, filters *domain.ClientFilters) error

	Delete(ctx context.Context, clientID int64) error

	// DeleteStale removes sessions last touched before the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// Store bundles every repository.
type Store struct {
	Clients      ClientRepository
	Wallets      WalletRepository
	Coins        CoinRepository
	Transactions TransactionRepository
	Filters      FiltersRepository
}

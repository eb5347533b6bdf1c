// Package service implements the operations behind the bot commands.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// ErrPriceUnavailable is returned when no provider quotes the coin.
var ErrPriceUnavailable = errors.New("price unavailable")

// Gateway is the subset of upstream calls the service needs.
type Gateway interface {
	Signatures(ctx context.Context, address string, limit int) ([]string, error)
	CoinPrices(ctx context.Context, refs []domain.CoinRef) ([]domain.CoinPrice, error)
	SpotPrice(ctx context.Context, chain domain.Chain, address string) (*domain.PricePoint, error)
	CoinInfo(ctx context.Context, chain domain.Chain, addresses []string) ([]domain.CoinInfo, error)
	CoinList(ctx context.Context, params domain.TokenListParams) ([]domain.CoinSummary, error)
}

// CoinResolver returns the coin row for a token, creating it if needed.
type CoinResolver interface {
	GetOrCreate(ctx context.Context, chain domain.Chain, address string) (*domain.Coin, error)
}

// Config tunes search paging.
type Config struct {
	PageSize  int
	FetchSize int
	Logger    *slog.Logger
}

type Service struct {
	store     *storage.Store
	gw        Gateway
	coins     CoinResolver
	pageSize  int
	fetchSize int
	now       func() time.Time
	log       *slog.Logger
}

func New(store *storage.Store, gw Gateway, coins CoinResolver, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = 50
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		gw:        gw,
		coins:     coins,
		pageSize:  cfg.PageSize,
		fetchSize: cfg.FetchSize,
		now:       time.Now,
		log:       log.With("component", "service"),
	}
}

// RegisterClient creates the client on first contact or refreshes its profile.
func (s *Service) RegisterClient(ctx context.Context, c *domain.Client) (bool, error) {
	created, err := s.store.Clients.Upsert(ctx, c)
	if err != nil {
		return false, fmt.Errorf("upsert client: %w", err)
	}
	if created {
		s.log.Info("New client", "client_id", c.ID, "username", c.Username)
	}
	return created, nil
}

// Client returns the client, registering a bare row if it is unknown.
func (s *Service) Client(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := s.store.Clients.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if c != nil {
		return c, nil
	}
	if _, err := s.RegisterClient(ctx, &domain.Client{ID: id}); err != nil {
		return nil, err
	}
	return s.store.Clients.Get(ctx, id)
}

// SetAlertsEnabled turns every notification for the client on or off.
func (s *Service) SetAlertsEnabled(ctx context.Context, clientID int64, enabled bool) error {
	if _, err := s.Client(ctx, clientID); err != nil {
		return err
	}
	if err := s.store.Clients.SetAlertsEnabled(ctx, clientID, enabled); err != nil {
		return fmt.Errorf("set alerts: %w", err)
	}
	return nil
}

// UpdateAlertFilter applies mutate to the client's wallet alert filter and
// stores the result.
func (s *Service) UpdateAlertFilter(ctx context.Context, clientID int64, mutate func(*domain.AlertFilter)) (domain.AlertFilter, error) {
	c, err := s.Client(ctx, clientID)
	if err != nil {
		return domain.AlertFilter{}, err
	}
	f := c.Filter
	mutate(&f)
	if err := s.store.Clients.UpdateFilter(ctx, clientID, f); err != nil {
		return domain.AlertFilter{}, fmt.Errorf("update filter: %w", err)
	}
	return f, nil
}

// Counts is a summary of tracked entities.
type Counts struct {
	Clients int
	Wallets int
	Coins   int
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Clients, err = s.store.Clients.Count(ctx); err != nil {
		return c, fmt.Errorf("count clients: %w", err)
	}
	if c.Wallets, err = s.store.Wallets.Count(ctx); err != nil {
		return c, fmt.Errorf("count wallets: %w", err)
	}
	if c.Coins, err = s.store.Coins.Count(ctx); err != nil {
		return c, fmt.Errorf("count coins: %w", err)
	}
	return c, nil
}

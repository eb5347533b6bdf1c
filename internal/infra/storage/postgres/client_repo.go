package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// ClientRepo implements storage.ClientRepository using PostgreSQL.
type ClientRepo struct {
	db *DB
}

// NewClientRepo creates a new PostgreSQL client repository.
func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

type clientRow struct {
	ID            int64     `db:"id"`
	FirstName     string    `db:"first_name"`
	LastName      string    `db:"last_name"`
	Username      string    `db:"username"`
	IsPremium     bool      `db:"is_premium"`
	AlertsEnabled bool      `db:"alerts_enabled"`
	MaxPrice      *float64  `db:"max_price"`
	MinMarketCap  *float64  `db:"min_market_cap"`
	MinAge        *int64    `db:"min_age_minutes"`
	MaxAge        *int64    `db:"max_age_minutes"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *clientRow) toDomain() *domain.Client {
	return &domain.Client{
		ID:            r.ID,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Username:      r.Username,
		IsPremium:     r.IsPremium,
		AlertsEnabled: r.AlertsEnabled,
		Filter: domain.AlertFilter{
			MaxPrice:     r.MaxPrice,
			MinMarketCap: r.MinMarketCap,
			MinAge:       durationPtr(r.MinAge),
			MaxAge:       durationPtr(r.MaxAge),
		},
		CreatedAt: r.CreatedAt,
	}
}

const clientColumns = `c.id, c.first_name, c.last_name, c.username, c.is_premium, c.alerts_enabled,
	c.max_price, c.min_market_cap, c.min_age_minutes, c.max_age_minutes, c.created_at`

// Upsert creates the client or refreshes its Telegram profile.
func (r *ClientRepo) Upsert(ctx context.Context, client *domain.Client) (bool, error) {
	query := `
		INSERT INTO clients (id, first_name, last_name, username, is_premium)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			is_premium = EXCLUDED.is_premium
		RETURNING (xmax = 0) AS created
	`
	var created bool
	err := r.db.QueryRowxContext(ctx, query,
		client.ID, client.FirstName, client.LastName, client.Username, client.IsPremium,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert client: %w", err)
	}
	return created, nil
}

// Get retrieves a client by Telegram id.
func (r *ClientRepo) Get(ctx context.Context, id int64) (*domain.Client, error) {
	var row clientRow
	err := r.db.GetContext(ctx, &row, `SELECT `+clientColumns+` FROM clients c WHERE c.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return row.toDomain(), nil
}

// SetAlertsEnabled toggles notifications.
func (r *ClientRepo) SetAlertsEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE clients SET alerts_enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to update alerts flag: %w", err)
	}
	return nil
}

// UpdateFilter replaces the wallet alert filter.
func (r *ClientRepo) UpdateFilter(ctx context.Context, id int64, f domain.AlertFilter) error {
	query := `
		UPDATE clients SET
			max_price = $2, min_market_cap = $3, min_age_minutes = $4, max_age_minutes = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		id, f.MaxPrice, f.MinMarketCap, minutesPtr(f.MinAge), minutesPtr(f.MaxAge),
	)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	return nil
}

// ListByWallet returns subscribers of a wallet with alerts enabled.
func (r *ClientRepo) ListByWallet(ctx context.Context, walletID int64) ([]*domain.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients c
		JOIN client_wallets cw ON cw.client_id = c.id
		WHERE cw.wallet_id = $1 AND c.alerts_enabled
		ORDER BY c.id
	`
	var rows []clientRow
	if err := r.db.SelectContext(ctx, &rows, query, walletID); err != nil {
		return nil, fmt.Errorf("failed to list wallet clients: %w", err)
	}
	out := make([]*domain.Client, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *ClientRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM clients`); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

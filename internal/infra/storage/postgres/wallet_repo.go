package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// WalletRepo implements storage.WalletRepository using PostgreSQL.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a new PostgreSQL wallet repository.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

type walletRow struct {
	ID        int64     `db:"id"`
	Address   string    `db:"address"`
	Chain     string    `db:"chain"`
	CreatedAt time.Time `db:"created_at"`
}

func (w *walletRow) toDomain() *domain.Wallet {
	return &domain.Wallet{
		ID:        w.ID,
		Address:   w.Address,
		Chain:     domain.Chain(w.Chain),
		CreatedAt: w.CreatedAt,
	}
}

func (r *WalletRepo) selectWallets(ctx context.Context, query string, args ...any) ([]*domain.Wallet, error) {
	var rows []walletRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*domain.Wallet, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// GetByAddress retrieves a wallet by address.
func (r *WalletRepo) GetByAddress(
	ctx context.Context,
	address string,
	chain domain.Chain,
) (*domain.Wallet, error) {
	var row walletRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, address, chain, created_at FROM wallets WHERE address = $1 AND chain = $2`,
		address, string(chain),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return row.toDomain(), nil
}

// GetOrCreate inserts the wallet unless (address, chain) exists.
func (r *WalletRepo) GetOrCreate(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (address, chain) VALUES ($1, $2) ON CONFLICT (address, chain) DO NOTHING`,
		wallet.Address, string(wallet.Chain),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return r.GetByAddress(ctx, wallet.Address, wallet.Chain)
}

// ListTracked returns wallets that at least one alert-enabled client follows.
func (r *WalletRepo) ListTracked(ctx context.Context) ([]*domain.Wallet, error) {
	query := `
		SELECT DISTINCT w.id, w.address, w.chain, w.created_at
		FROM wallets w
		JOIN client_wallets cw ON cw.wallet_id = w.id
		JOIN clients c ON c.id = cw.client_id
		WHERE c.alerts_enabled
		ORDER BY w.id
	`
	out, err := r.selectWallets(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked wallets: %w", err)
	}
	return out, nil
}

// ListByClient returns the wallets a client follows.
func (r *WalletRepo) ListByClient(ctx context.Context, clientID int64) ([]*domain.Wallet, error) {
	query := `
		SELECT w.id, w.address, w.chain, w.created_at
		FROM wallets w
		JOIN client_wallets cw ON cw.wallet_id = w.id
		WHERE cw.client_id = $1
		ORDER BY w.id
	`
	out, err := r.selectWallets(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client wallets: %w", err)
	}
	return out, nil
}

// Subscribe links a client to a wallet.
func (r *WalletRepo) Subscribe(ctx context.Context, clientID, walletID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_wallets (client_id, wallet_id) VALUES ($1, $2)`,
		clientID, walletID,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe wallet: %w", err)
	}
	return nil
}

// Unsubscribe removes the link; the wallet row is kept.
func (r *WalletRepo) Unsubscribe(ctx context.Context, clientID, walletID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM client_wallets WHERE client_id = $1 AND wallet_id = $2`,
		clientID, walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *WalletRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM wallets`); err != nil {
		return 0, fmt.Errorf("failed to count wallets: %w", err)
	}
	return n, nil
}

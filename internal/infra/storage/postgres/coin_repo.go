package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// CoinRepo implements storage.CoinRepository using PostgreSQL.
type CoinRepo struct {
	db *DB
}

// NewCoinRepo creates a new PostgreSQL coin repository.
func NewCoinRepo(db *DB) *CoinRepo {
	return &CoinRepo{db: db}
}

type coinRow struct {
	ID          int64      `db:"id"`
	Address     string     `db:"address"`
	Chain       string     `db:"chain"`
	Symbol      string     `db:"symbol"`
	Name        string     `db:"name"`
	Logo        string     `db:"logo"`
	PairAddress string     `db:"pair_address"`
	CreatedAt   *time.Time `db:"created_at"`
}

func (c *coinRow) toDomain() *domain.Coin {
	coin := &domain.Coin{
		ID:          c.ID,
		Address:     c.Address,
		Chain:       domain.Chain(c.Chain),
		Symbol:      c.Symbol,
		Name:        c.Name,
		Logo:        c.Logo,
		PairAddress: c.PairAddress,
	}
	if c.CreatedAt != nil {
		coin.CreatedAt = *c.CreatedAt
	}
	return coin
}

type clientCoinRow struct {
	ClientID         int64     `db:"client_id"`
	CoinID           int64     `db:"coin_id"`
	Direction        string    `db:"direction"`
	StartPrice       float64   `db:"start_price"`
	Percentage       float64   `db:"percentage"`
	NotificationSent bool      `db:"notification_sent"`
	CreatedAt        time.Time `db:"created_at"`
}

func (c *clientCoinRow) toDomain() *domain.ClientCoin {
	return &domain.ClientCoin{
		ClientID:         c.ClientID,
		CoinID:           c.CoinID,
		Direction:        domain.Direction(c.Direction),
		StartPrice:       c.StartPrice,
		Percentage:       c.Percentage,
		NotificationSent: c.NotificationSent,
		CreatedAt:        c.CreatedAt,
	}
}

const coinColumns = `id, address, chain, symbol, name, logo, pair_address, created_at`

// GetByAddress retrieves a coin by address.
func (r *CoinRepo) GetByAddress(ctx context.Context, address string, chain domain.Chain) (*domain.Coin, error) {
	var row coinRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+coinColumns+` FROM coins WHERE address = $1 AND chain = $2`,
		address, string(chain),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coin: %w", err)
	}
	return row.toDomain(), nil
}

// GetByAddresses retrieves the known coins among addresses.
func (r *CoinRepo) GetByAddresses(ctx context.Context, chain domain.Chain, addresses []string) ([]*domain.Coin, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	var rows []coinRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+coinColumns+` FROM coins WHERE chain = $1 AND address = ANY($2)`,
		string(chain), pq.Array(addresses),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get coins: %w", err)
	}
	out := make([]*domain.Coin, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// GetOrCreate inserts the coin unless (address, chain) exists.
func (r *CoinRepo) GetOrCreate(ctx context.Context, coin *domain.Coin) (*domain.Coin, error) {
	var createdAt *time.Time
	if !coin.CreatedAt.IsZero() {
		createdAt = &coin.CreatedAt
	}
	query := `
		INSERT INTO coins (address, chain, symbol, name, logo, pair_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address, chain) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		coin.Address, string(coin.Chain), coin.Symbol, coin.Name, coin.Logo, coin.PairAddress, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coin: %w", err)
	}
	return r.GetByAddress(ctx, coin.Address, coin.Chain)
}

// GroupTrackedByChain returns subscribed coin addresses per chain.
func (r *CoinRepo) GroupTrackedByChain(ctx context.Context) (map[domain.Chain][]string, error) {
	query := `
		SELECT DISTINCT c.chain, c.address
		FROM coins c
		JOIN client_coins cc ON cc.coin_id = c.id
		ORDER BY c.chain, c.address
	`
	var rows []struct {
		Chain   string `db:"chain"`
		Address string `db:"address"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to group coins: %w", err)
	}

	out := make(map[domain.Chain][]string)
	for _, row := range rows {
		ch := domain.Chain(row.Chain)
		out[ch] = append(out[ch], row.Address)
	}
	return out, nil
}

// ListByClient returns a client's subscriptions and their coins, in the same order.
func (r *CoinRepo) ListByClient(ctx context.Context, clientID int64) ([]*domain.ClientCoin, []*domain.Coin, error) {
	query := `
		SELECT cc.client_id, cc.coin_id, cc.direction, cc.start_price, cc.percentage,
			cc.notification_sent, cc.created_at,
			c.id, c.address, c.chain, c.symbol, c.name, c.logo, c.pair_address, c.created_at AS coin_created_at
		FROM client_coins cc
		JOIN coins c ON c.id = cc.coin_id
		WHERE cc.client_id = $1
		ORDER BY cc.coin_id
	`
	rows, err := r.db.QueryxContext(ctx, query, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list client coins: %w", err)
	}
	defer rows.Close()

	var subs []*domain.ClientCoin
	var coins []*domain.Coin
	for rows.Next() {
		var s clientCoinRow
		var c coinRow
		err := rows.Scan(
			&s.ClientID, &s.CoinID, &s.Direction, &s.StartPrice, &s.Percentage,
			&s.NotificationSent, &s.CreatedAt,
			&c.ID, &c.Address, &c.Chain, &c.Symbol, &c.Name, &c.Logo, &c.PairAddress, &c.CreatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan client coin: %w", err)
		}
		subs = append(subs, s.toDomain())
		coins = append(coins, c.toDomain())
	}
	return subs, coins, rows.Err()
}

// Subscribe links a client to a coin.
func (r *CoinRepo) Subscribe(ctx context.Context, sub *domain.ClientCoin) error {
	query := `
		INSERT INTO client_coins (client_id, coin_id, direction, start_price, percentage)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.ClientID, sub.CoinID, string(sub.Direction), sub.StartPrice, sub.Percentage,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe coin: %w", err)
	}
	return nil
}

// Unsubscribe removes the link.
func (r *CoinRepo) Unsubscribe(ctx context.Context, clientID, coinID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM client_coins WHERE client_id = $1 AND coin_id = $2`,
		clientID, coinID,
	)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe coin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// UpdateTracking replaces the threshold and clears the latch.
func (r *CoinRepo) UpdateTracking(ctx context.Context, sub *domain.ClientCoin) error {
	query := `
		UPDATE client_coins SET
			direction = $3, start_price = $4, percentage = $5, notification_sent = FALSE
		WHERE client_id = $1 AND coin_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		sub.ClientID, sub.CoinID, string(sub.Direction), sub.StartPrice, sub.Percentage,
	)
	if err != nil {
		return fmt.Errorf("failed to update tracking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// PendingAlerts returns subscriptions that may still fire.
func (r *CoinRepo) PendingAlerts(ctx context.Context, coinID int64) ([]*domain.ClientCoin, error) {
	query := `
		SELECT cc.client_id, cc.coin_id, cc.direction, cc.start_price, cc.percentage,
			cc.notification_sent, cc.created_at
		FROM client_coins cc
		JOIN clients c ON c.id = cc.client_id
		WHERE cc.coin_id = $1
			AND NOT cc.notification_sent
			AND c.alerts_enabled
			AND cc.direction <> ''
			AND cc.percentage > 0
		ORDER BY cc.client_id
	`
	var rows []clientCoinRow
	if err := r.db.SelectContext(ctx, &rows, query, coinID); err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	out := make([]*domain.ClientCoin, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// MarkNotified sets the latch for exactly the given pairs.
func (r *CoinRepo) MarkNotified(ctx context.Context, keys []domain.ClientCoinKey) error {
	if len(keys) == 0 {
		return nil
	}
	clientIDs := make([]int64, len(keys))
	coinIDs := make([]int64, len(keys))
	for i, k := range keys {
		clientIDs[i] = k.ClientID
		coinIDs[i] = k.CoinID
	}
	query := `
		UPDATE client_coins cc SET notification_sent = TRUE
		FROM unnest($1::bigint[], $2::bigint[]) AS k(client_id, coin_id)
		WHERE cc.client_id = k.client_id AND cc.coin_id = k.coin_id
	`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(clientIDs), pq.Array(coinIDs)); err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	return nil
}

func (r *CoinRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM coins`); err != nil {
		return 0, fmt.Errorf("failed to count coins: %w", err)
	}
	return n, nil
}

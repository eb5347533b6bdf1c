package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// FiltersRepo implements storage.FiltersRepository using PostgreSQL.
type FiltersRepo struct {
	db *DB
}

// NewFiltersRepo creates a new PostgreSQL search session repository.
func NewFiltersRepo(db *DB) *FiltersRepo {
	return &FiltersRepo{db: db}
}

type filtersRow struct {
	ClientID     int64     `db:"client_id"`
	Chain        string    `db:"chain"`
	MinLiquidity float64   `db:"min_liquidity"`
	MinPrice     *float64  `db:"min_price"`
	MaxPrice     *float64  `db:"max_price"`
	MinAge       *int64    `db:"min_age_minutes"`
	MaxAge       *int64    `db:"max_age_minutes"`
	MinMarketCap *float64  `db:"min_market_cap"`
	Results      []byte    `db:"results"`
	Offset       int       `db:"result_offset"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Get retrieves a client's session.
func (r *FiltersRepo) Get(ctx context.Context, clientID int64) (*domain.ClientFilters, error) {
	query := `
		SELECT client_id, chain, min_liquidity, min_price, max_price, min_age_minutes,
			max_age_minutes, min_market_cap, results, result_offset, updated_at
		FROM client_filters WHERE client_id = $1
	`
	var row filtersRow
	err := r.db.GetContext(ctx, &row, query, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filters: %w", err)
	}

	f := &domain.ClientFilters{
		ClientID:     row.ClientID,
		Chain:        domain.Chain(row.Chain),
		MinLiquidity: row.MinLiquidity,
		MinPrice:     row.MinPrice,
		MaxPrice:     row.MaxPrice,
		MinAge:       durationPtr(row.MinAge),
		MaxAge:       durationPtr(row.MaxAge),
		MinMarketCap: row.MinMarketCap,
		Offset:       row.Offset,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Results) > 0 {
		if err := json.Unmarshal(row.Results, &f.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
	}
	return f, nil
}

// Save creates or replaces a session.
func (r *FiltersRepo) Save(ctx context.Context, f *domain.ClientFilters) error {
	results, err := json.Marshal(f.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if f.Results == nil {
		results = []byte("[]")
	}
	query := `
		INSERT INTO client_filters (
			client_id, chain, min_liquidity, min_price, max_price, min_age_minutes,
			max_age_minutes, min_market_cap, results, result_offset, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (client_id) DO UPDATE SET
			chain = EXCLUDED.chain,
			min_liquidity = EXCLUDED.min_liquidity,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			min_age_minutes = EXCLUDED.min_age_minutes,
			max_age_minutes = EXCLUDED.max_age_minutes,
			min_market_cap = EXCLUDED.min_market_cap,
			results = EXCLUDED.results,
			result_offset = EXCLUDED.result_offset,
			updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ClientID, string(f.Chain), f.MinLiquidity, f.MinPrice, f.MaxPrice,
		minutesPtr(f.MinAge), minutesPtr(f.MaxAge), f.MinMarketCap, results, f.Offset,
	)
	if err != nil {
		return fmt.Errorf("failed to save filters: %w", err)
	}
	return nil
}

func (r *FiltersRepo) Delete(ctx context.Context, clientID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_filters WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("failed to delete filters: %w", err)
	}
	return nil
}

func (r *FiltersRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM client_filters WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale filters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

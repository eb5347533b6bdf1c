package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

// ExistingSignatures returns the stored subset of sigs for the wallet.
func (r *TxRepo) ExistingSignatures(ctx context.Context, walletID int64, sigs []string) ([]string, error) {
	if len(sigs) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.SelectContext(ctx, &out,
		`SELECT signature FROM transactions WHERE wallet_id = $1 AND signature = ANY($2)`,
		walletID, pq.Array(sigs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	return out, nil
}

// SaveBatch upserts enriched rows.
func (r *TxRepo) SaveBatch(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transactions (
			wallet_id, coin_id, token_address, amount, price, total_cost, tx_time, signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (wallet_id, signature) DO UPDATE SET
			coin_id = COALESCE(EXCLUDED.coin_id, transactions.coin_id),
			token_address = EXCLUDED.token_address,
			amount = EXCLUDED.amount,
			price = COALESCE(EXCLUDED.price, transactions.price),
			total_cost = COALESCE(EXCLUDED.total_cost, transactions.total_cost),
			tx_time = COALESCE(EXCLUDED.tx_time, transactions.tx_time)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range txs {
		_, err := stmt.ExecContext(ctx,
			t.WalletID, nullID(t.CoinID), t.TokenAddress, t.Amount,
			nullFloat(t.Price), nullFloat(t.TotalCost), nullTime(t.Timestamp), t.Signature,
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", t.Signature, err)
		}
	}

	return tx.Commit()
}

// SavePlaceholders inserts bare rows, leaving existing ones untouched.
func (r *TxRepo) SavePlaceholders(ctx context.Context, walletID int64, sigs []string) error {
	if len(sigs) == 0 {
		return nil
	}
	query := `
		INSERT INTO transactions (wallet_id, signature)
		SELECT $1, s FROM unnest($2::text[]) AS s
		ON CONFLICT (wallet_id, signature) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, walletID, pq.Array(sigs)); err != nil {
		return fmt.Errorf("failed to save placeholders: %w", err)
	}
	return nil
}

// MarkSent flags rows as notified.
func (r *TxRepo) MarkSent(ctx context.Context, keys []domain.TxKey) error {
	if len(keys) == 0 {
		return nil
	}
	walletIDs := make([]int64, len(keys))
	sigs := make([]string, len(keys))
	for i, k := range keys {
		walletIDs[i] = k.WalletID
		sigs[i] = k.Signature
	}
	query := `
		UPDATE transactions t SET sent = TRUE
		FROM unnest($1::bigint[], $2::text[]) AS k(wallet_id, signature)
		WHERE t.wallet_id = k.wallet_id AND t.signature = k.signature
	`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(walletIDs), pq.Array(sigs)); err != nil {
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return nil
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

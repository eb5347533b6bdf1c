package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

type storedTx struct {
	CoinID       sql.NullInt64   `db:"coin_id"`
	TokenAddress sql.NullString  `db:"token_address"`
	Amount       sql.NullFloat64 `db:"amount"`
	Price        sql.NullFloat64 `db:"price"`
	TotalCost    sql.NullFloat64 `db:"total_cost"`
	TxTime       sql.NullTime    `db:"tx_time"`
	Sent         bool            `db:"sent"`
}

func getTx(t *testing.T, db *DB, walletID int64, sig string) storedTx {
	t.Helper()
	var row storedTx
	err := db.GetContext(context.Background(), &row, `
		SELECT coin_id, token_address, amount, price, total_cost, tx_time, sent
		FROM transactions WHERE wallet_id = $1 AND signature = $2
	`, walletID, sig)
	require.NoError(t, err)
	return row
}

func countTxs(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, `SELECT COUNT(*) FROM transactions`))
	return n
}

func TestTxRepo_IdempotentIngestion(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db := setupTestDB(t, driver)
			txs := NewTxRepo(db)

			w, err := NewWalletRepo(db).GetOrCreate(ctx, &domain.Wallet{Address: "W1", Chain: domain.ChainSolana})
			require.NoError(t, err)
			coin, err := NewCoinRepo(db).GetOrCreate(ctx, &domain.Coin{Address: "TKN1", Chain: domain.ChainSolana})
			require.NoError(t, err)

			existing, err := txs.ExistingSignatures(ctx, w.ID, []string{"sigA", "sigB"})
			require.NoError(t, err)
			assert.Empty(t, existing)

			ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, txs.SaveBatch(ctx, []*domain.Transaction{
				{WalletID: w.ID, TokenAddress: "TKN1", Amount: 120, Timestamp: ts, Signature: "sigA"},
			}))
			require.NoError(t, txs.SavePlaceholders(ctx, w.ID, []string{"sigB"}))

			existing, err = txs.ExistingSignatures(ctx, w.ID, []string{"sigA", "sigB", "sigC"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"sigA", "sigB"}, existing)

			// the evaluator enriches sigA with its coin and price
			require.NoError(t, txs.SaveBatch(ctx, []*domain.Transaction{
				{WalletID: w.ID, CoinID: coin.ID, TokenAddress: "TKN1", Amount: 120, Price: 2, TotalCost: 240, Timestamp: ts, Signature: "sigA"},
			}))

			// replays change nothing: placeholders never overwrite, and a bare
			// upsert keeps the stored coin, price and time
			require.NoError(t, txs.SavePlaceholders(ctx, w.ID, []string{"sigA", "sigB"}))
			require.NoError(t, txs.SaveBatch(ctx, []*domain.Transaction{
				{WalletID: w.ID, TokenAddress: "TKN1", Amount: 120, Signature: "sigA"},
			}))
			assert.Equal(t, 2, countTxs(t, db))

			a := getTx(t, db, w.ID, "sigA")
			assert.Equal(t, coin.ID, a.CoinID.Int64)
			assert.Equal(t, "TKN1", a.TokenAddress.String)
			assert.InDelta(t, 120, a.Amount.Float64, 1e-9)
			assert.InDelta(t, 2, a.Price.Float64, 1e-9)
			assert.InDelta(t, 240, a.TotalCost.Float64, 1e-9)
			assert.True(t, a.TxTime.Time.Equal(ts))

			b := getTx(t, db, w.ID, "sigB")
			assert.False(t, b.TokenAddress.Valid)
			assert.False(t, b.CoinID.Valid)
		})
	}
}

func TestTxRepo_MarkSent(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db := setupTestDB(t, driver)
			txs := NewTxRepo(db)
			wallets := NewWalletRepo(db)

			w1, err := wallets.GetOrCreate(ctx, &domain.Wallet{Address: "W1", Chain: domain.ChainSolana})
			require.NoError(t, err)
			w2, err := wallets.GetOrCreate(ctx, &domain.Wallet{Address: "W2", Chain: domain.ChainSolana})
			require.NoError(t, err)

			// the same signature under two wallets is two rows
			require.NoError(t, txs.SavePlaceholders(ctx, w1.ID, []string{"sigA", "sigB"}))
			require.NoError(t, txs.SavePlaceholders(ctx, w2.ID, []string{"sigA"}))

			require.NoError(t, txs.MarkSent(ctx, []domain.TxKey{{WalletID: w1.ID, Signature: "sigA"}}))
			require.NoError(t, txs.MarkSent(ctx, nil))

			assert.True(t, getTx(t, db, w1.ID, "sigA").Sent)
			assert.False(t, getTx(t, db, w1.ID, "sigB").Sent)
			assert.False(t, getTx(t, db, w2.ID, "sigA").Sent)

			// a later enrichment upsert never clears the flag
			require.NoError(t, txs.SaveBatch(ctx, []*domain.Transaction{
				{WalletID: w1.ID, TokenAddress: "TKN1", Amount: 1, Price: 3, Signature: "sigA"},
			}))
			assert.True(t, getTx(t, db, w1.ID, "sigA").Sent)
		})
	}
}

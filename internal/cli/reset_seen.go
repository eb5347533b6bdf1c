package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/coinwatch/internal/core/domain"
	redisclient "github.com/vietddude/coinwatch/internal/infra/redis"
	"github.com/vietddude/coinwatch/internal/infra/storage/postgres"
)

var resetSeenCmd = &cobra.Command{
	Use:   "reset-seen [wallet_address]",
	Short: "Drop the cached signatures of a wallet so the next cycle checks them against the database",
	Args:  cobra.ExactArgs(1),
	Run:   runResetSeen,
}

func init() {
	rootCmd.AddCommand(resetSeenCmd)
}

func runResetSeen(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if !cfg.Redis.Enabled() {
		slog.Error("redis.url is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	wallet, err := postgres.NewWalletRepo(db).GetByAddress(ctx, args[0], domain.ChainSolana)
	if err != nil {
		slog.Error("Failed to look up wallet", "error", err)
		os.Exit(1)
	}
	if wallet == nil {
		slog.Error("Wallet not found", "address", args[0])
		os.Exit(1)
	}

	rc, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rc.Close()
	}()

	if err := rc.Forget(ctx, wallet.ID); err != nil {
		slog.Error("Failed to reset signatures", "error", err)
		os.Exit(1)
	}
	slog.Info("Signature cache cleared", "wallet", wallet.Address, "wallet_id", wallet.ID)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/coinwatch/internal/infra/storage/postgres"
	"github.com/vietddude/coinwatch/internal/service"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many clients, wallets and coins are tracked",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	svc := service.New(postgres.NewStore(db), nil, nil, service.Config{})
	counts, err := svc.Counts(ctx)
	if err != nil {
		slog.Error("Failed to count", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CLIENTS\tWALLETS\tCOINS")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", counts.Clients, counts.Wallets, counts.Coins)
	_ = w.Flush()
}

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/coinwatch/internal/control"
	"github.com/vietddude/coinwatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	noBot   bool
)

var rootCmd = &cobra.Command{
	Use:   "coinwatch",
	Short: "Telegram bot tracking wallets and coin prices",
	Long:  `coinwatch follows Solana wallets and token prices and notifies Telegram users about buys and price moves.`,
	Run:   runBot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&noBot, "no-bot", false, "run the alert cycles without the Telegram bot")
}

// loadConfig reads .env and the YAML file, then initializes logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runBot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.New(ctx, cfg, control.Options{NoBot: noBot}, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize coinwatch", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("coinwatch started", "config", cfgPath, "bot", !noBot)
	if err := app.Run(ctx, 15*time.Second); err != nil {
		slog.Error("coinwatch stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("coinwatch stopped gracefully")
}

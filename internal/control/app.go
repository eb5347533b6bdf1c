// Package control wires every component of coinwatch from configuration
// and runs them until shutdown.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vietddude/coinwatch/internal/alerting"
	"github.com/vietddude/coinwatch/internal/alerting/dispatch"
	"github.com/vietddude/coinwatch/internal/alerting/evaluate"
	"github.com/vietddude/coinwatch/internal/alerting/health"
	"github.com/vietddude/coinwatch/internal/alerting/ingest"
	"github.com/vietddude/coinwatch/internal/alerting/pricewatch"
	"github.com/vietddude/coinwatch/internal/alerting/scheduler"
	"github.com/vietddude/coinwatch/internal/bot"
	"github.com/vietddude/coinwatch/internal/core/catalog"
	"github.com/vietddude/coinwatch/internal/core/config"
	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/core/worker"
	"github.com/vietddude/coinwatch/internal/infra/chain"
	"github.com/vietddude/coinwatch/internal/infra/chain/alchemy"
	"github.com/vietddude/coinwatch/internal/infra/chain/birdeye"
	"github.com/vietddude/coinwatch/internal/infra/chain/dexscreener"
	"github.com/vietddude/coinwatch/internal/infra/chain/solana"
	redisclient "github.com/vietddude/coinwatch/internal/infra/redis"
	"github.com/vietddude/coinwatch/internal/infra/rpc"
	"github.com/vietddude/coinwatch/internal/infra/storage"
	"github.com/vietddude/coinwatch/internal/infra/storage/memory"
	"github.com/vietddude/coinwatch/internal/infra/storage/postgres"
	"github.com/vietddude/coinwatch/internal/notify"
	"github.com/vietddude/coinwatch/internal/service"
)

// Options are run-time switches from the command line.
type Options struct {
	// NoBot runs the alert cycles without polling Telegram for updates.
	NoBot bool
}

// App owns every long-lived component.
type App struct {
	cfg  *config.AppConfig
	opts Options
	log  *slog.Logger

	db        *postgres.DB
	redis     *redisclient.Client
	store     *storage.Store
	providers *rpc.Registry
	gateway   *chain.Gateway
	resolver  *catalog.Resolver
	service   *service.Service
	scheduler *scheduler.Scheduler
	health    *health.Server
	pruner    *worker.Pruner
	bot       *bot.Bot
}

// New builds the application. It connects to the database and Redis when
// they are configured and falls back to in-memory storage otherwise.
func New(ctx context.Context, cfg *config.AppConfig, opts Options, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, opts: opts, log: log}

	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	a.initRedis()
	a.initGateway()

	a.service = service.New(a.store, a.gateway, a.resolver, service.Config{
		PageSize:  cfg.Search.PageSize,
		FetchSize: cfg.Search.FetchSize,
		Logger:    log,
	})

	api, err := a.initTelegram()
	if err != nil {
		a.Close()
		return nil, err
	}
	var sender notify.Sender = notify.LogSender{Logger: log}
	if api != nil {
		sender = notify.NewTelegramSender(api)
	}
	notifier := notify.New(sender, notify.Config{
		RetryAfter:  cfg.Notify.SendRetryAfter,
		Concurrency: cfg.Notify.SendConcurrency,
		Logger:      log,
	})

	a.scheduler = a.buildScheduler(notifier)
	a.health = health.NewServer(health.NewMonitor(a.scheduler, a.providers, a.pingers()), cfg.Server.Port)
	a.pruner = worker.NewPruner(cfg.Search.SessionTTL, a.store.Filters, log)

	if api != nil && !opts.NoBot {
		a.bot = bot.New(api, a.service, bot.Config{Logger: log})
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if !a.cfg.Database.Enabled() {
		a.store = memory.NewStore()
		a.log.Warn("No database configured, using memory storage")
		return nil
	}
	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	a.db = db
	a.store = postgres.NewStore(db)
	a.log.Info("Using PostgreSQL storage")
	return nil
}

// initRedis connects the signature cache. Failures only disable the cache.
func (a *App) initRedis() {
	if !a.cfg.Redis.Enabled() {
		return
	}
	client, err := redisclient.NewClient(a.cfg.Redis)
	if err != nil {
		a.log.Warn("Failed to connect to Redis, signature cache disabled", "error", err)
		return
	}
	a.redis = client
	a.log.Info("Signature cache enabled")
}

func (a *App) initGateway() {
	p := a.cfg.Providers
	retry := a.cfg.Retry
	a.providers = rpc.NewRegistry(retry)

	dex := dexscreener.NewClient(a.providers.New("dexscreener", p.Dexscreener.URL, p.Dexscreener, retry, nil))
	// Shared by coin creation and the Solana parser's pool lookups.
	a.resolver = catalog.NewResolver(dex, a.store.Coins)
	pools := a.resolver

	public := solana.NewClient(a.providers.New("solana", p.Solana.URL, p.Solana, retry, nil), solana.Config{}, pools, a.log)
	var primary, fallback chain.TransactionSource = public, nil
	if p.Alchemy.URL != "" {
		primary = solana.NewClient(a.providers.New("alchemy-solana", p.Alchemy.URL, p.Alchemy, retry, nil), solana.Config{}, pools, a.log)
		fallback = public
	}

	prices := alchemy.NewClient(
		a.providers.New("alchemy-prices", strings.TrimRight(p.Alchemy.PricesURL, "/")+"/"+p.Alchemy.APIKey, p.Alchemy, retry, nil),
		a.log,
	)
	tokens := birdeye.NewClient(a.providers.New("birdeye", p.Birdeye.URL, p.Birdeye, retry, map[string]string{
		"X-API-KEY": p.Birdeye.APIKey,
		"x-chain":   string(domain.ChainSolana),
	}))

	a.gateway = chain.NewGateway(chain.GatewayConfig{
		Transactions:         primary,
		TransactionsFallback: fallback,
		Prices:               prices,
		Market:               dex,
		Tokens:               tokens,
		Logger:               a.log,
	})
}

// initTelegram returns nil when no token is configured.
func (a *App) initTelegram() (*tb.Bot, error) {
	if a.cfg.Telegram.Token == "" {
		a.log.Warn("No telegram token configured, alerts are only logged")
		return nil, nil
	}
	return bot.NewAPI(bot.Config{Token: a.cfg.Telegram.Token, PollTimeout: a.cfg.Telegram.PollTimeout})
}

func (a *App) buildScheduler(notifier *notify.Notifier) *scheduler.Scheduler {
	n := a.cfg.Notify

	// a nil *Client must not end up inside the interface
	var cache ingest.SeenCache
	if a.redis != nil {
		cache = a.redis
	}

	wallets := &alerting.WalletPipeline{
		Wallets: a.store.Wallets,
		Ingestor: ingest.New(a.gateway, a.store.Transactions, cache, ingest.Config{
			SignaturesLimit: n.SignaturesLimit,
			Concurrency:     n.Concurrency,
			Logger:          a.log,
		}),
		Evaluator:   evaluate.New(a.gateway, a.resolver, a.store.Transactions, a.log),
		Dispatcher:  dispatch.NewWalletDispatcher(a.store.Clients, a.store.Transactions, notifier, n.Concurrency, a.log),
		Concurrency: n.Concurrency,
	}
	coins := &alerting.CoinPipeline{
		Detector: pricewatch.NewDetector(a.store.Coins, a.gateway, notifier, n.Concurrency, a.log),
	}

	return scheduler.New(a.log,
		scheduler.Cycle{Name: alerting.CoinsCycle, Interval: n.CoinsInterval, Run: coins.Run},
		scheduler.Cycle{Name: alerting.WalletsCycle, Interval: n.WalletsInterval, Run: wallets.Run},
	)
}

func (a *App) pingers() map[string]health.Pinger {
	deps := make(map[string]health.Pinger)
	if a.db != nil {
		deps["postgres"] = a.db.Health
	}
	if a.redis != nil {
		deps["redis"] = a.redis.Health
	}
	return deps
}

// Service exposes the subscription operations.
func (a *App) Service() *service.Service { return a.service }

// Scheduler exposes the alert cycles.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Health exposes the health server.
func (a *App) Health() *health.Server { return a.health }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The health server gets shutdownTimeout to drain.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("Health server listening", "port", a.cfg.Server.Port)
		return a.health.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.health.Stop(stopCtx)
	})

	g.Go(func() error { return a.scheduler.Start(ctx) })
	g.Go(func() error {
		a.pruner.Start(ctx)
		return nil
	})
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.bot != nil {
		g.Go(func() error { return a.bot.Start(ctx) })
	} else {
		a.log.Info("Bot disabled, running alert cycles only")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases connections. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.providers != nil {
		a.providers.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

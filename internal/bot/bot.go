// Package bot is the Telegram front end: command and button handlers over
// the subscription service, plus the per-user conversation state.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// Config holds the bot settings.
type Config struct {
	Token       string
	PollTimeout time.Duration
	StateTTL    time.Duration
	Logger      *slog.Logger
}

// Bot binds Handlers to a telebot long poller.
type Bot struct {
	tb       *tb.Bot
	handlers *Handlers
	log      *slog.Logger
	timeout  time.Duration
}

// NewAPI creates the telebot client without registering handlers, so the
// notifier can share it.
func NewAPI(cfg Config) (*tb.Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	api, err := tb.NewBot(tb.Settings{
		Token:     cfg.Token,
		Poller:    &tb.LongPoller{Timeout: cfg.PollTimeout},
		ParseMode: tb.ModeHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return api, nil
}

func New(api *tb.Bot, svc Backend, cfg Config) *Bot {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		tb:       api,
		handlers: NewHandlers(svc, NewFSM(cfg.StateTTL), log),
		log:      log.With("component", "bot"),
		timeout:  30 * time.Second,
	}
	b.register()
	return b
}

func (b *Bot) register() {
	b.tb.Handle("/start", func(m *tb.Message) {
		if m.Sender == nil {
			return
		}
		b.reply(m, func(ctx context.Context) Reply { return b.handlers.Start(ctx, clientOf(m.Sender)) })
	})
	b.tb.Handle("/help", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.Help(ctx, user) }))
	b.tb.Handle("/cancel", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.Cancel(ctx, user) }))
	b.tb.Handle("/add_wallet", b.command(b.handlers.AddWallet))
	b.tb.Handle("/edit_wallet", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.EditWallet(ctx, user) }))
	b.tb.Handle("/add_coin", b.command(b.handlers.AddCoin))
	b.tb.Handle("/edit_coin", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.EditCoin(ctx, user) }))
	b.tb.Handle("/filters", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.Filters(ctx, user) }))
	b.tb.Handle("/search", b.command(b.handlers.Search))
	b.tb.Handle("/toggle_alerts", b.command(func(ctx context.Context, user int64, _ string) Reply { return b.handlers.ToggleAlerts(ctx, user) }))
	b.tb.Handle(tb.OnText, func(m *tb.Message) {
		if m.Sender == nil {
			return
		}
		b.reply(m, func(ctx context.Context) Reply { return b.handlers.Text(ctx, m.Sender.ID, m.Text) })
	})
	b.tb.Handle(tb.OnCallback, b.callback)
}

// SetCommands publishes the command menu.
func (b *Bot) SetCommands() error {
	return b.tb.SetCommands([]tb.Command{
		{Text: "add_wallet", Description: "Follow a wallet"},
		{Text: "edit_wallet", Description: "Replace or remove a wallet"},
		{Text: "add_coin", Description: "Follow a coin"},
		{Text: "edit_coin", Description: "Price alerts, replace or remove a coin"},
		{Text: "filters", Description: "Wallet alert filters"},
		{Text: "search", Description: "Search tokens"},
		{Text: "toggle_alerts", Description: "Pause or resume alerts"},
		{Text: "cancel", Description: "Abort the current input"},
	})
}

// Start polls until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.SetCommands(); err != nil {
		b.log.Warn("Failed to set bot commands", "error", err)
	}
	b.log.Info("Bot started", "username", b.tb.Me.Username)
	go func() {
		<-ctx.Done()
		b.tb.Stop()
	}()
	b.tb.Start()
	b.log.Info("Bot stopped")
	return nil
}

func (b *Bot) command(fn func(ctx context.Context, user int64, args string) Reply) func(*tb.Message) {
	return func(m *tb.Message) {
		if m.Sender == nil {
			return
		}
		b.reply(m, func(ctx context.Context) Reply { return fn(ctx, m.Sender.ID, m.Payload) })
	}
}

func (b *Bot) reply(m *tb.Message, fn func(ctx context.Context) Reply) {
	defer b.recover("message")
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	r := fn(ctx)
	if r.Text == "" {
		return
	}
	if _, err := b.tb.Send(m.Chat, r.Text, options(r)...); err != nil {
		b.log.Warn("Failed to reply", "user", m.Sender.ID, "error", err)
	}
}

func (b *Bot) callback(c *tb.Callback) {
	defer b.recover("callback")
	if c.Sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	r := b.handlers.Callback(ctx, c.Sender.ID, c.Data)
	if err := b.tb.Respond(c, &tb.CallbackResponse{}); err != nil {
		b.log.Debug("Failed to answer callback", "error", err)
	}
	if r.Text == "" {
		return
	}
	var err error
	if r.Edit && c.Message != nil {
		_, err = b.tb.Edit(c.Message, r.Text, options(r)...)
	} else {
		_, err = b.tb.Send(c.Sender, r.Text, options(r)...)
	}
	if err != nil {
		b.log.Warn("Failed to answer button", "user", c.Sender.ID, "data", c.Data, "error", err)
	}
}

func (b *Bot) recover(kind string) {
	if r := recover(); r != nil {
		b.log.Error("Handler panicked", "kind", kind, "panic", r)
	}
}

func options(r Reply) []interface{} {
	opts := []interface{}{tb.ModeHTML, tb.NoPreview}
	if r.Markup != nil {
		opts = append(opts, r.Markup)
	}
	return opts
}

func clientOf(u *tb.User) *domain.Client {
	return &domain.Client{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"
)

// ErrUndeliverable marks a message Telegram will never accept for this chat
// (blocked bot, chat not found, bad request).
var ErrUndeliverable = errors.New("message undeliverable")

// RetryAfterError is returned when Telegram throttles a send.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.After)
}

// Sender delivers one text message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramSender adapts a telebot Bot to Sender.
type TelegramSender struct {
	bot  *tb.Bot
	opts []interface{}
}

func NewTelegramSender(bot *tb.Bot, opts ...interface{}) *TelegramSender {
	if len(opts) == 0 {
		opts = []interface{}{&tb.SendOptions{ParseMode: tb.ModeHTML, DisableWebPagePreview: true}}
	}
	return &TelegramSender{bot: bot, opts: opts}
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tb.ChatID(chatID), text, s.opts...)
	return classify(err)
}

// LogSender writes messages to the log instead of Telegram. It is used
// when no bot token is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, chatID int64, text string) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("Message not sent, telegram disabled", "chat_id", chatID, "text", text)
	return nil
}

// classify maps telebot errors onto the notifier's taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var flood tb.FloodError
	if errors.As(err, &flood) {
		return &RetryAfterError{After: time.Duration(flood.RetryAfter) * time.Second}
	}
	var floodPtr *tb.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return &RetryAfterError{After: time.Duration(floodPtr.RetryAfter) * time.Second}
	}
	var apiErr *tb.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &RetryAfterError{}
		}
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return fmt.Errorf("%w: %s", ErrUndeliverable, apiErr.Description)
		}
	}
	return err
}

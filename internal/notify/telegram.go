// Package notify forwards alert messages to Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/retry"
)

// ErrMissingToken is returned by NewTelegram when no bot token is configured.
var ErrMissingToken = errors.New("telegram token is required")

// MessageSender is the part of the Telegram bot API the notifier needs.
// *telego.Bot satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Telegram sends alert text to a single chat.
type Telegram struct {
	bot    MessageSender
	chatID int64
	prefix string
	retry  retry.Config
	logger *logger.Logger
}

// NewTelegram creates a notifier backed by a real bot.
func NewTelegram(token string, chatID int64, log *logger.Logger) (*Telegram, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat_id is required")
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return NewTelegramWithSender(bot, chatID, log), nil
}

// NewTelegramWithSender creates a notifier around an existing sender.
func NewTelegramWithSender(bot MessageSender, chatID int64, log *logger.Logger) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		prefix: "[taskrunner] ALERT: ",
		logger: log,
	}
}

// SetRetry replaces the retry policy used for transient send failures.
func (t *Telegram) SetRetry(cfg retry.Config) {
	t.retry = cfg
}

// Notify sends text to the configured chat, retrying transient failures.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: t.chatID},
		Text:   t.prefix + text,
	}

	err := retry.Do(ctx, t.retry, func(ctx context.Context) error {
		_, err := t.bot.SendMessage(ctx, params)
		return err
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.logger.Debug("alert sent to telegram",
		logger.Field{Key: "chat_id", Value: t.chatID})
	return nil
}

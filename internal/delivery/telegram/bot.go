package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

// NewAPI authenticates token with getMe. The client timeout must exceed the
// long-poll timeout.
func NewAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

// Start handles updates one at a time until ctx is done, which keeps wizard
// input for a chat strictly ordered.
func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, b.api, update)
		}
	}
}

type Notifier struct {
	api    Sender
	logger *zap.Logger
}

func NewNotifier(api Sender, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, logger: logger}
}

func (n *Notifier) SendAlert(ctx context.Context, owner int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Info("telegram notify send", zap.Int64("chat_id", owner), zap.String("text", message))
	msg := tgbotapi.NewMessage(owner, message)
	err := callWithin(ctx, func() error {
		_, err := n.api.Send(msg)
		return err
	})
	if err != nil {
		n.logger.Warn("failed to notify", zap.Int64("chat_id", owner), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return nil
}

func (n *Notifier) VerifyReachable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var me tgbotapi.User
	err := callWithin(ctx, func() error {
		var err error
		me, err = n.api.GetMe()
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	n.logger.Info("telegram bot reachable", zap.String("username", me.UserName))
	return nil
}

// callWithin returns when call does or when ctx ends. The Bot API client takes
// no context, so an abandoned call finishes in the background.
func callWithin(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- call()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

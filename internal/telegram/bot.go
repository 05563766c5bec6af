package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"limit-tg-bot/internal/config"
)

// Bot consumes Telegram updates over long polling and feeds them to the
// moderation handler.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	cfg     config.TelegramConfig
	logger  *slog.Logger

	// Track active update processing
	activeUpdates sync.WaitGroup
}

// NewBot creates the update consumer around an authorized API client.
func NewBot(api *tgbotapi.BotAPI, cfg config.TelegramConfig, handler *Handler, logger *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts polling and blocks until the context is cancelled. Member
// and join-request events are not delivered by default and must be asked
// for explicitly.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout
	u.AllowedUpdates = []string{
		"message",
		"callback_query",
		"my_chat_member",
		"chat_member",
		"chat_join_request",
	}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active updates")

			// Stop receiving updates
			b.api.StopReceivingUpdates()

			// Wait for active updates with timeout
			done := make(chan struct{})
			go func() {
				b.activeUpdates.Wait()
				close(done)
			}()

			select {
			case <-done:
				b.logger.Info("all active updates completed")
			case <-time.After(25 * time.Second):
				b.logger.Warn("some updates may not have completed")
			}

			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			// Process update in goroutine
			b.activeUpdates.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.activeUpdates.Done()

				// Create request context with timeout
				reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
				defer cancel()

				b.handler.HandleUpdate(reqCtx, upd)
			}(update)
		}
	}
}

// BotInfo returns information about the bot account.
func (b *Bot) BotInfo() tgbotapi.User {
	return b.api.Self
}

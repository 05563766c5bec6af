package telegram

import (
	"context"
	"log/slog"

	"limit-tg-bot/internal/gateway"
)

// Reporter mirrors moderation and admin events to the configured log
// chat. Delivery is best-effort; a chat ID of 0 disables reporting.
type Reporter struct {
	gw        gateway.Gateway
	logChatID int64
	logger    *slog.Logger
}

// NewReporter creates a log-chat reporter.
func NewReporter(gw gateway.Gateway, logChatID int64, logger *slog.Logger) *Reporter {
	return &Reporter{gw: gw, logChatID: logChatID, logger: logger}
}

// Report sends one line to the log chat.
func (r *Reporter) Report(ctx context.Context, text string) {
	if r.logChatID == 0 {
		return
	}
	if _, err := r.gw.SendMessage(ctx, r.logChatID, text, nil); err != nil {
		r.logger.Debug("failed to send log chat message", "error", err)
	}
}

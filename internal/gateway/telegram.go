package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway implements Gateway against the Telegram Bot API.
type TelegramGateway struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegram wraps an authorized bot API client.
func NewTelegram(api *tgbotapi.BotAPI, logger *slog.Logger) *TelegramGateway {
	return &TelegramGateway{api: api, logger: logger}
}

// MemberStatus queries a user's membership status in a channel.
func (g *TelegramGateway) MemberStatus(ctx context.Context, channelID, userID int64) (string, error) {
	member, err := g.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: channelID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("get chat member: %w", err)
	}
	return member.Status, nil
}

// CreateInviteLink creates a fresh invite link, optionally requiring a
// join request.
func (g *TelegramGateway) CreateInviteLink(ctx context.Context, channelID int64, joinRequest bool) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: channelID},
	}
	cfg.CreatesJoinRequest = joinRequest

	resp, err := g.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	return link.InviteLink, nil
}

// RestrictSend removes a member's send permission until the given time.
func (g *TelegramGateway) RestrictSend(ctx context.Context, chatID, userID int64, until time.Time) error {
	perms := &tgbotapi.ChatPermissions{CanSendMessages: false}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		UntilDate:   until.Unix(),
		Permissions: perms,
	}
	if _, err := g.api.Request(cfg); err != nil {
		return fmt.Errorf("restrict member: %w", err)
	}
	return nil
}

// RestoreSend restores a member's full send permissions.
func (g *TelegramGateway) RestoreSend(ctx context.Context, chatID, userID int64) error {
	perms := &tgbotapi.ChatPermissions{
		CanSendMessages:       true,
		CanSendMediaMessages:  true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		Permissions: perms,
	}
	if _, err := g.api.Request(cfg); err != nil {
		return fmt.Errorf("restore member: %w", err)
	}
	return nil
}

// SendMessage sends a plain-text message with optional URL buttons.
func (g *TelegramGateway) SendMessage(ctx context.Context, chatID int64, text string, buttons []Button) (MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	sent, err := g.api.Send(msg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// SendHTML sends an HTML-formatted message.
func (g *TelegramGateway) SendHTML(ctx context.Context, chatID int64, html string) (MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := g.api.Send(msg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send html message: %w", err)
	}
	return MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// DeleteMessage deletes a message, best-effort for callers that ignore
// the error.
func (g *TelegramGateway) DeleteMessage(ctx context.Context, ref MessageRef) error {
	if _, err := g.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

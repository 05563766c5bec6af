package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"limit-tg-bot/internal/forcesub"
	"limit-tg-bot/internal/gateway"
	"limit-tg-bot/internal/limiter"
	"limit-tg-bot/internal/quota"
)

const (
	callbackChooseRequest = "forcesub_request"
	callbackChooseDirect  = "forcesub_direct"
)

// Handler routes inbound updates to the moderation pipeline, the admin
// command surface and the event-driven force-sub transitions.
type Handler struct {
	api        *tgbotapi.BotAPI
	gw         gateway.Gateway
	access     *Access
	tracker    *quota.Tracker
	verifier   *forcesub.Verifier
	quotaStore quota.Store
	forceStore forcesub.Store
	locker     *limiter.PairLocker
	dialogs    *setupDialogs
	reporter   *Reporter
	logger     *slog.Logger
}

// NewHandler creates the update handler.
func NewHandler(
	api *tgbotapi.BotAPI,
	gw gateway.Gateway,
	access *Access,
	tracker *quota.Tracker,
	verifier *forcesub.Verifier,
	quotaStore quota.Store,
	forceStore forcesub.Store,
	reporter *Reporter,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		api:        api,
		gw:         gw,
		access:     access,
		tracker:    tracker,
		verifier:   verifier,
		quotaStore: quotaStore,
		forceStore: forceStore,
		locker:     limiter.NewPairLocker(),
		dialogs:    newSetupDialogs(),
		reporter:   reporter,
		logger:     logger,
	}
}

// HandleUpdate processes a single update. Errors never escape: every
// failure is resolved locally, because an uncaught one would silently
// drop the event.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.ChatJoinRequest != nil:
		h.verifier.HandleJoinRequest(ctx, update.ChatJoinRequest.From.ID, update.ChatJoinRequest.Chat.ID)
	case update.ChatMember != nil:
		h.handleMemberUpdate(ctx, update.ChatMember)
	case update.MyChatMember != nil:
		h.handleBotMembership(ctx, update.MyChatMember)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID

	// Setup dialogue continuation eats the message before anything else.
	if !msg.IsCommand() && msg.Text != "" && h.dialogs.awaitingChannelID(chatID, userID) {
		h.finishSetupDialog(ctx, msg)
		return
	}

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}

	if msg.Text == "" {
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}
	if !h.access.IsGroupAuthorized(chatID) {
		return
	}

	// Verifier strictly precedes the tracker; a blocked message is never
	// counted. The pair lock serializes the read-modify-write sequences
	// for the same sender.
	unlock := h.locker.Lock(chatID, userID)
	defer unlock()

	name := displayName(msg.From)
	if blocked := h.verifier.CheckMessage(ctx, chatID, userID, msg.MessageID, name); blocked {
		return
	}

	if err := h.tracker.HandleMessage(ctx, chatID, userID, msg.MessageID, name); err != nil {
		h.logger.Error("quota tracking failed", "error", err, "chat_id", chatID, "user_id", userID)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.logger.Debug("failed to answer callback", "error", err)
	}

	if cq.Message == nil || cq.From == nil {
		return
	}
	if !h.access.IsOwner(cq.From.ID) {
		return
	}

	var channelType string
	switch cq.Data {
	case callbackChooseRequest:
		channelType = forcesub.TypeRequest
	case callbackChooseDirect:
		channelType = forcesub.TypeDirect
	default:
		return
	}

	chatID := cq.Message.Chat.ID
	if !h.dialogs.chooseType(chatID, cq.From.ID, channelType) {
		return
	}

	h.reply(ctx, chatID, "Send the channel ID.\n\nTip: the bot must be admin in that channel.")
}

// handleMemberUpdate revokes the pending grace when a user leaves or is
// kicked from a channel before their join request was approved.
func (h *Handler) handleMemberUpdate(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	status := upd.NewChatMember.Status
	if status != gateway.StatusLeft && status != gateway.StatusKicked {
		return
	}
	if upd.NewChatMember.User == nil {
		return
	}
	h.verifier.HandleMemberGone(ctx, upd.NewChatMember.User.ID, upd.Chat.ID)
}

// handleBotMembership reacts to the bot itself being added to a group.
func (h *Handler) handleBotMembership(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	status := upd.NewChatMember.Status
	if status != gateway.StatusMember && status != gateway.StatusAdministrator {
		return
	}
	if !upd.Chat.IsGroup() && !upd.Chat.IsSuperGroup() {
		return
	}

	h.reporter.Report(ctx, fmt.Sprintf("➕ Bot added to group\nName: %s\nID: %d", upd.Chat.Title, upd.Chat.ID))

	if h.access.IsGroupAuthorized(upd.Chat.ID) {
		return
	}
	h.reply(ctx, upd.Chat.ID, "⚠️ This group is not authorized.\nThe owner must use /add_grp to activate the bot.")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.gw.SendMessage(ctx, chatID, text, nil); err != nil {
		h.logger.Error("failed to send reply", "error", err, "chat_id", chatID)
	}
}

func displayName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.UserName
	}
	return name
}

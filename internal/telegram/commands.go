package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "limit-tg-bot/internal/errors"
	"limit-tg-bot/internal/quota"
)

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())
	args := strings.Fields(msg.CommandArguments())

	var err error
	switch cmd {
	case "start":
		h.reporter.Report(ctx, fmt.Sprintf("👤 User started bot\nName: %s\nID: %d", displayName(msg.From), msg.From.ID))
		h.reply(ctx, msg.Chat.ID, "Bot active.")

	case "cmd":
		h.reply(ctx, msg.Chat.ID, commandList)

	case "stats":
		err = h.cmdStats(ctx, msg, args)

	case "top":
		err = h.cmdTop(ctx, msg)

	// Everything below is owner-only; unauthorized calls fall through
	// silently so privileged command names are never confirmed.
	case "add_grp":
		err = h.ownerCmd(msg, func() error { return h.cmdAddGroup(ctx, msg, args) })
	case "grp_setting":
		err = h.ownerCmd(msg, func() error { return h.cmdGroupLimit(ctx, msg, args) })
	case "warn_limit":
		err = h.ownerCmd(msg, func() error { return h.cmdWarnLimit(ctx, msg, args) })
	case "mute":
		err = h.ownerCmd(msg, func() error { return h.cmdMuteToggle(ctx, msg, args) })
	case "set_mute":
		err = h.ownerCmd(msg, func() error { return h.cmdSetMute(ctx, msg, args) })
	case "sp_mem":
		err = h.ownerCmd(msg, func() error { return h.cmdSpecial(ctx, msg, args, true) })
	case "unsp_mem":
		err = h.ownerCmd(msg, func() error { return h.cmdSpecial(ctx, msg, args, false) })
	case "ext_lim":
		err = h.ownerCmd(msg, func() error { return h.cmdExtendedLimit(ctx, msg, args) })
	case "rem_limit":
		err = h.ownerCmd(msg, func() error { return h.cmdRemoveLimit(ctx, msg, args) })
	case "renew":
		err = h.ownerCmd(msg, func() error { return h.cmdRenew(ctx, msg, args) })
	case "up_admin":
		err = h.ownerCmd(msg, func() error { return h.cmdPromoteAdmin(ctx, msg, args) })
	case "sub_force":
		err = h.ownerCmd(msg, func() error { return h.cmdSubForce(ctx, msg) })
	case "remove_chnl":
		err = h.ownerCmd(msg, func() error { return h.cmdRemoveChannel(ctx, msg, args) })
	case "force_remove":
		err = h.ownerCmd(msg, func() error { return h.cmdForceRemove(ctx, msg) })
	case "clear_req":
		err = h.ownerCmd(msg, func() error { return h.cmdClearCache(ctx, msg) })
	case "force_unmute":
		err = h.ownerCmd(msg, func() error { return h.cmdBulkUnmute(ctx, msg) })
	}

	if err == nil {
		return
	}
	if usage, ok := apperrors.UserMessage(err); ok {
		h.reply(ctx, msg.Chat.ID, usage)
		return
	}
	h.logger.Error("command failed", "error", err, "command", cmd, "chat_id", msg.Chat.ID)
}

// ownerCmd runs fn only for the owner; everyone else gets a silent no-op.
func (h *Handler) ownerCmd(msg *tgbotapi.Message, fn func() error) error {
	if !h.access.IsOwner(msg.From.ID) {
		return nil
	}
	return fn()
}

const commandList = "/stats\n" +
	"/top\n" +
	"/add_grp\n" +
	"/grp_setting\n" +
	"/warn_limit\n" +
	"/mute on|off\n" +
	"/set_mute\n" +
	"/sp_mem\n" +
	"/unsp_mem\n" +
	"/ext_lim\n" +
	"/rem_limit\n" +
	"/renew\n" +
	"/up_admin\n" +
	"/sub_force\n" +
	"/remove_chnl\n" +
	"/force_remove\n" +
	"/clear_req\n" +
	"/force_unmute\n" +
	"/cmd"

func (h *Handler) cmdStats(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	groupID := msg.Chat.ID
	userID := msg.From.ID
	label := displayName(msg.From)

	// Targets other than yourself require stats-admin rights.
	if len(args) > 0 && h.access.IsStatsAdmin(msg.From.ID) {
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return apperrors.Usage("/stats [user_id]")
		}
		userID = target
		label = args[0]
	}

	user, err := h.quotaStore.GetUser(userID, groupID)
	if err != nil {
		return fmt.Errorf("load user stats: %w", err)
	}
	if user == nil {
		h.reply(ctx, groupID, "No data found for this user.")
		return nil
	}

	group, err := h.quotaStore.GetGroup(groupID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}

	limit := quota.EffectiveLimit(user, group)
	remaining := limit - user.MessageCount
	if remaining < 0 {
		remaining = 0
	}

	extText := "No"
	if user.ExtendedLimit > 0 {
		extText = strconv.Itoa(user.ExtendedLimit)
	}
	specialText := "No"
	if user.IsSpecial {
		specialText = "Yes"
	}

	h.reply(ctx, groupID, fmt.Sprintf(
		"📊 User Stats\n\nName: %s\nUser ID: %d\n\nUsed: %d/%d\nRemaining: %d\n\nExtended Limit: %s\nSpecial Member: %s",
		label, userID, user.MessageCount, limit, remaining, extText, specialText,
	))
	return nil
}

func (h *Handler) cmdTop(ctx context.Context, msg *tgbotapi.Message) error {
	users, err := h.quotaStore.TopUsers(msg.Chat.ID, 5)
	if err != nil {
		return fmt.Errorf("load top users: %w", err)
	}
	if len(users) == 0 {
		h.reply(ctx, msg.Chat.ID, "No data.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Top Users:\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "%d → %d\n", u.UserID, u.MessageCount)
	}
	h.reply(ctx, msg.Chat.ID, sb.String())
	return nil
}

func (h *Handler) cmdAddGroup(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/add_grp [group_id]")
	}
	groupID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/add_grp [group_id]")
	}

	if err := h.quotaStore.EnsureGroup(groupID); err != nil {
		return fmt.Errorf("authorize group: %w", err)
	}

	h.reply(ctx, msg.Chat.ID, "Group authorized successfully.")
	h.reporter.Report(ctx, fmt.Sprintf(
		"✅ New Group Authorized\nGroup ID: %d\nAuthorized By: %s\nUser ID: %d",
		groupID, displayName(msg.From), msg.From.ID,
	))
	return nil
}

func (h *Handler) cmdGroupLimit(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/grp_setting [limit]")
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil || limit < 1 {
		return apperrors.Usage("/grp_setting [limit]")
	}

	if err := h.quotaStore.SetMessageLimit(msg.Chat.ID, limit); err != nil {
		return fmt.Errorf("set group limit: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Group limit set to %d.", limit))
	return nil
}

func (h *Handler) cmdWarnLimit(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/warn_limit [n] (0 = default)")
	}
	threshold, err := strconv.Atoi(args[0])
	if err != nil || threshold < 0 {
		return apperrors.Usage("/warn_limit [n] (0 = default)")
	}

	if err := h.quotaStore.SetWarnThreshold(msg.Chat.ID, threshold); err != nil {
		return fmt.Errorf("set warn threshold: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "Warn limit updated.")
	return nil
}

func (h *Handler) cmdMuteToggle(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/mute on|off")
	}
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return apperrors.Usage("/mute on|off")
	}

	if err := h.quotaStore.SetMuteEnabled(msg.Chat.ID, enabled); err != nil {
		return fmt.Errorf("set mute enabled: %w", err)
	}
	if enabled {
		h.reply(ctx, msg.Chat.ID, "Mute enabled.")
	} else {
		h.reply(ctx, msg.Chat.ID, "Mute disabled.")
	}
	return nil
}

func (h *Handler) cmdSetMute(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 || !quota.ValidMuteDuration(args[0]) {
		return apperrors.Usage("/set_mute [5m/5h/5d]")
	}

	if err := h.quotaStore.SetMuteTime(msg.Chat.ID, args[0]); err != nil {
		return fmt.Errorf("set mute time: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "Mute duration updated.")
	return nil
}

func (h *Handler) cmdSpecial(ctx context.Context, msg *tgbotapi.Message, args []string, special bool) error {
	usage := "/sp_mem [user_id]"
	if !special {
		usage = "/unsp_mem [user_id]"
	}
	if len(args) < 1 {
		return apperrors.Usage(usage)
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage(usage)
	}

	groupID := msg.Chat.ID
	today := time.Now().UTC().Format(quota.DateLayout)
	if err := h.quotaStore.EnsureUser(userID, groupID, today); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := h.quotaStore.SetSpecial(userID, groupID, special); err != nil {
		return fmt.Errorf("set special: %w", err)
	}

	if special {
		h.reply(ctx, groupID, "Special member added.")
	} else {
		h.reply(ctx, groupID, "Special member removed.")
	}
	return nil
}

func (h *Handler) cmdExtendedLimit(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		return apperrors.Usage("/ext_lim [user_id] [limit] (0 clears)")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/ext_lim [user_id] [limit] (0 clears)")
	}
	limit, err := strconv.Atoi(args[1])
	if err != nil || limit < 0 {
		return apperrors.Usage("/ext_lim [user_id] [limit] (0 clears)")
	}

	groupID := msg.Chat.ID
	today := time.Now().UTC().Format(quota.DateLayout)
	if err := h.quotaStore.EnsureUser(userID, groupID, today); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := h.quotaStore.SetExtendedLimit(userID, groupID, limit); err != nil {
		return fmt.Errorf("set extended limit: %w", err)
	}

	h.reply(ctx, groupID, "Extended limit updated.")
	return nil
}

func (h *Handler) cmdRemoveLimit(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		return apperrors.Usage("/rem_limit [user_id] [5m/5h/5d|off]")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/rem_limit [user_id] [5m/5h/5d|off]")
	}

	groupID := msg.Chat.ID
	today := time.Now().UTC().Format(quota.DateLayout)
	if err := h.quotaStore.EnsureUser(userID, groupID, today); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	if strings.ToLower(args[1]) == "off" {
		if err := h.quotaStore.SetExemptUntil(userID, groupID, nil); err != nil {
			return fmt.Errorf("clear exemption: %w", err)
		}
		h.reply(ctx, groupID, "Temporary exemption removed.")
		return nil
	}

	if !quota.ValidMuteDuration(args[1]) {
		return apperrors.Usage("/rem_limit [user_id] [5m/5h/5d|off]")
	}
	until := time.Now().UTC().Add(quota.ParseMuteDuration(args[1]))
	if err := h.quotaStore.SetExemptUntil(userID, groupID, &until); err != nil {
		return fmt.Errorf("set exemption: %w", err)
	}

	h.reply(ctx, groupID, "Temporary limit removed.")
	return nil
}

func (h *Handler) cmdRenew(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/renew [user_id|all]")
	}

	groupID := msg.Chat.ID
	if strings.ToLower(args[0]) == "all" {
		if err := h.quotaStore.ResetAllCounts(groupID); err != nil {
			return fmt.Errorf("reset all counts: %w", err)
		}
		h.reply(ctx, groupID, "All users renewed.")
		return nil
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/renew [user_id|all]")
	}
	if err := h.quotaStore.ResetCount(userID, groupID); err != nil {
		return fmt.Errorf("reset count: %w", err)
	}

	h.reply(ctx, groupID, "User renewed.")
	return nil
}

func (h *Handler) cmdPromoteAdmin(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/up_admin [user_id]")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/up_admin [user_id]")
	}

	if err := h.quotaStore.AddStatsAdmin(userID); err != nil {
		return fmt.Errorf("add stats admin: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "User promoted to Stats Admin.")
	return nil
}

func (h *Handler) cmdSubForce(ctx context.Context, msg *tgbotapi.Message) error {
	h.dialogs.begin(msg.Chat.ID, msg.From.ID)

	reply := tgbotapi.NewMessage(msg.Chat.ID,
		"Force Subscribe Setup\n\n"+
			"• Request Sub → join request required (you approve)\n"+
			"• Direct Sub → instant join link\n\n"+
			"Choose type:")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Request Sub Channel", callbackChooseRequest),
			tgbotapi.NewInlineKeyboardButtonData("Direct Sub Channel", callbackChooseDirect),
		),
	)

	if _, err := h.api.Send(reply); err != nil {
		return fmt.Errorf("send setup menu: %w", err)
	}
	return nil
}

// finishSetupDialog consumes the channel-ID message that completes the
// setup dialogue. The channel record is written only here, so an
// abandoned dialogue leaves nothing behind.
func (h *Handler) finishSetupDialog(ctx context.Context, msg *tgbotapi.Message) {
	channelType, ok := h.dialogs.finish(msg.Chat.ID, msg.From.ID)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, "Invalid channel ID.")
		return
	}

	if err := h.forceStore.AddChannel(msg.Chat.ID, channelID, channelType); err != nil {
		h.logger.Error("failed to add force channel", "error", err, "chat_id", msg.Chat.ID)
		return
	}
	if err := h.forceStore.SetEnabled(msg.Chat.ID, true); err != nil {
		h.logger.Error("failed to enable force sub", "error", err, "chat_id", msg.Chat.ID)
		return
	}

	h.reply(ctx, msg.Chat.ID, "Force channel added.\n\nTip: use /clear_req when adding new channels.")
}

func (h *Handler) cmdRemoveChannel(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) < 1 {
		return apperrors.Usage("/remove_chnl [channel_id]")
	}
	channelID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return apperrors.Usage("/remove_chnl [channel_id]")
	}

	if err := h.forceStore.RemoveChannel(msg.Chat.ID, channelID); err != nil {
		return fmt.Errorf("remove channel: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "Channel removed from this group.")
	return nil
}

func (h *Handler) cmdForceRemove(ctx context.Context, msg *tgbotapi.Message) error {
	if err := h.forceStore.SetEnabled(msg.Chat.ID, false); err != nil {
		return fmt.Errorf("disable force sub: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "Force Subscribe disabled for this group.")
	return nil
}

func (h *Handler) cmdClearCache(ctx context.Context, msg *tgbotapi.Message) error {
	if err := h.forceStore.ClearGroupCache(msg.Chat.ID); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, "Verification cache cleared.\nUsers will be checked again.")
	return nil
}

func (h *Handler) cmdBulkUnmute(ctx context.Context, msg *tgbotapi.Message) error {
	count, err := h.verifier.BulkUnmute(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("bulk unmute: %w", err)
	}
	h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Unmuted %d user(s).", count))
	return nil
}

package forcesub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"limit-tg-bot/internal/gateway"
)

// Scheduler registers one-shot deferred callbacks.
type Scheduler interface {
	Once(delay time.Duration, name string, fn func(ctx context.Context))
}

// BypassChecker reports whether a user holds the special-member bypass.
type BypassChecker interface {
	IsSpecial(userID, groupID int64) (bool, error)
}

// Config carries the verifier's timing knobs.
type Config struct {
	MuteDuration time.Duration // temporary mute applied to blocked users
	NoticeTTL    time.Duration // auto-delete delay for the join-warning
	WelcomeTTL   time.Duration // auto-delete delay for the welcome message
	OwnerID      int64
}

// Verifier gates group messages on membership in owner-designated
// channels. State per (user, group) is derived from stored records:
// a verified mark means satisfied, a pending row means a submitted but
// unapproved join request to a request-type channel.
type Verifier struct {
	store  Store
	bypass BypassChecker
	gw     gateway.Gateway
	sched  Scheduler
	logger *slog.Logger
	cfg    Config

	now func() time.Time
}

// NewVerifier creates a force-subscription verifier.
func NewVerifier(store Store, bypass BypassChecker, gw gateway.Gateway, sched Scheduler, cfg Config, logger *slog.Logger) *Verifier {
	return &Verifier{
		store:  store,
		bypass: bypass,
		gw:     gw,
		sched:  sched,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CheckMessage decides whether a group message may proceed to the quota
// tracker. It returns true when the message was blocked. Store errors
// resolve to allow (log and continue); membership-query errors resolve
// to not-joined (fail closed).
func (v *Verifier) CheckMessage(ctx context.Context, chatID, userID int64, messageID int, name string) bool {
	if userID == v.cfg.OwnerID {
		return false
	}

	enabled, err := v.store.IsEnabled(chatID)
	if err != nil {
		v.logger.Error("failed to load force config", "error", err, "chat_id", chatID)
		return false
	}
	if !enabled {
		return false
	}

	special, err := v.bypass.IsSpecial(userID, chatID)
	if err != nil {
		v.logger.Error("failed to check bypass", "error", err, "user_id", userID)
	}
	if special {
		return false
	}

	// Cache hit: a verified mark skips the membership queries entirely.
	verified, err := v.store.IsVerified(userID, chatID)
	if err != nil {
		v.logger.Error("failed to check verified cache", "error", err, "user_id", userID)
		return false
	}
	if verified {
		return false
	}

	channels, err := v.store.ActiveChannels(chatID)
	if err != nil {
		v.logger.Error("failed to load force channels", "error", err, "chat_id", chatID)
		return false
	}
	if len(channels) == 0 {
		return false
	}

	var unmet []Channel
	for _, ch := range channels {
		if v.channelSatisfied(ctx, ch, userID) {
			continue
		}
		unmet = append(unmet, ch)
	}

	if len(unmet) == 0 {
		v.verify(ctx, chatID, userID, name)
		return false
	}

	v.blockMessage(ctx, chatID, userID, messageID, unmet)
	return true
}

// channelSatisfied queries live membership; a query failure counts as not
// joined. For request-type channels a recorded pending join request
// downgrades not-joined to acceptable.
func (v *Verifier) channelSatisfied(ctx context.Context, ch Channel, userID int64) bool {
	status, err := v.gw.MemberStatus(ctx, ch.ChannelID, userID)
	if err != nil {
		v.logger.Debug("membership query failed, treating as not joined",
			"error", err, "channel_id", ch.ChannelID, "user_id", userID)
	} else if gateway.Joined(status) {
		return true
	}

	if ch.Type != TypeRequest {
		return false
	}

	pending, err := v.store.HasPending(userID, ch.GroupID, ch.ChannelID)
	if err != nil {
		v.logger.Error("failed to check pending", "error", err, "user_id", userID)
		return false
	}
	return pending
}

// verify records the mark, drops stale pending rows and posts the
// one-time welcome.
func (v *Verifier) verify(ctx context.Context, chatID, userID int64, name string) {
	if err := v.store.MarkVerified(userID, chatID, v.now().UTC()); err != nil {
		v.logger.Error("failed to mark verified", "error", err, "user_id", userID)
		return
	}
	if err := v.store.DeletePendingForUser(userID, chatID); err != nil {
		v.logger.Error("failed to clear pending rows", "error", err, "user_id", userID)
	}

	v.logger.Info("user verified", "chat_id", chatID, "user_id", userID)

	text := fmt.Sprintf("✅ %s joined all required channels. Welcome!", gateway.Mention(userID, name))
	welcome, err := v.gw.SendHTML(ctx, chatID, text)
	if err != nil {
		v.logger.Error("failed to send welcome", "error", err, "chat_id", chatID)
		return
	}
	v.sched.Once(v.cfg.WelcomeTTL, "delete-welcome", func(ctx context.Context) {
		if err := v.gw.DeleteMessage(ctx, welcome); err != nil {
			v.logger.Debug("failed to delete welcome", "error", err, "chat_id", chatID)
		}
	})
}

func (v *Verifier) blockMessage(ctx context.Context, chatID, userID int64, messageID int, unmet []Channel) {
	if err := v.gw.DeleteMessage(ctx, gateway.MessageRef{ChatID: chatID, MessageID: messageID}); err != nil {
		v.logger.Debug("failed to delete blocked message", "error", err, "chat_id", chatID)
	}

	now := v.now().UTC()
	if err := v.store.AddMuted(userID, chatID, now); err != nil {
		v.logger.Error("failed to record force mute", "error", err, "user_id", userID)
	}
	if err := v.gw.RestrictSend(ctx, chatID, userID, now.Add(v.cfg.MuteDuration)); err != nil {
		v.logger.Error("failed to restrict member", "error", err, "chat_id", chatID, "user_id", userID)
	}

	// The reversal is scheduled unconditionally, even when the restrict
	// call failed: it only restores permissions, never revokes them.
	v.sched.Once(v.cfg.MuteDuration, "forcesub-unmute", func(ctx context.Context) {
		v.ScheduledUnmute(ctx, userID, chatID)
	})

	var buttons []gateway.Button
	for _, ch := range unmet {
		link, err := v.gw.CreateInviteLink(ctx, ch.ChannelID, ch.Type == TypeRequest)
		if err != nil {
			v.logger.Error("failed to create invite link", "error", err, "channel_id", ch.ChannelID)
			continue
		}
		buttons = append(buttons, gateway.Button{Text: "Join Required Channel", URL: link})
	}

	notice, err := v.gw.SendMessage(ctx, chatID,
		"⚠️ You must join the required channels before sending messages.\n\nAfter joining, send your message again.",
		buttons)
	if err != nil {
		v.logger.Error("failed to send join warning", "error", err, "chat_id", chatID)
	} else {
		v.sched.Once(v.cfg.NoticeTTL, "delete-join-warning", func(ctx context.Context) {
			if err := v.gw.DeleteMessage(ctx, notice); err != nil {
				v.logger.Debug("failed to delete join warning", "error", err, "chat_id", chatID)
			}
		})
	}

	v.logger.Info("message blocked by force-sub", "chat_id", chatID, "user_id", userID, "unmet_channels", len(unmet))
}

// ScheduledUnmute restores send permissions and drops the mute record.
// It is idempotent and fires even if the user verified in the meantime:
// it only ever restores permissions.
func (v *Verifier) ScheduledUnmute(ctx context.Context, userID, groupID int64) {
	if err := v.gw.RestoreSend(ctx, groupID, userID); err != nil {
		v.logger.Debug("failed to restore permissions", "error", err, "chat_id", groupID, "user_id", userID)
	}
	if err := v.store.DeleteMuted(userID, groupID); err != nil {
		v.logger.Error("failed to delete mute record", "error", err, "user_id", userID)
	}
}

// BulkUnmute reverts every force-sub restriction in a group. Recovery
// path for misconfiguration.
func (v *Verifier) BulkUnmute(ctx context.Context, groupID int64) (int, error) {
	muted, err := v.store.ListMuted(groupID)
	if err != nil {
		return 0, fmt.Errorf("list muted: %w", err)
	}

	for _, m := range muted {
		v.ScheduledUnmute(ctx, m.UserID, groupID)
	}
	return len(muted), nil
}

// HandleJoinRequest records a submitted join request as pending for every
// group requiring the channel. The platform event carries no group, so
// the row fans out.
func (v *Verifier) HandleJoinRequest(ctx context.Context, userID, channelID int64) {
	groups, err := v.store.RequestGroupsForChannel(channelID)
	if err != nil {
		v.logger.Error("failed to resolve groups for channel", "error", err, "channel_id", channelID)
		return
	}

	now := v.now().UTC()
	for _, groupID := range groups {
		if err := v.store.AddPending(userID, groupID, channelID, now); err != nil {
			v.logger.Error("failed to add pending", "error", err, "user_id", userID, "group_id", groupID)
			continue
		}
		v.logger.Info("join request pending", "user_id", userID, "group_id", groupID, "channel_id", channelID)
	}
}

// HandleMemberGone revokes the pending grace when a user leaves or is
// kicked from a request-type channel before approval.
func (v *Verifier) HandleMemberGone(ctx context.Context, userID, channelID int64) {
	if err := v.store.DeletePendingForChannel(userID, channelID); err != nil {
		v.logger.Error("failed to revoke pending", "error", err, "user_id", userID, "channel_id", channelID)
		return
	}
	v.logger.Info("pending grace revoked", "user_id", userID, "channel_id", channelID)
}

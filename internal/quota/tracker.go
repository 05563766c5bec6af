package quota

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

// Reporter mirrors moderation events to the log chat, best-effort.
type Reporter interface {
	Report(ctx context.Context, text string)
}

// Tracker counts non-command group messages per user per UTC day and
// warns, blocks and optionally mutes when the daily limit is crossed.
type Tracker struct {
	store     Store
	gw        gateway.Gateway
	sched     Scheduler
	reporter  Reporter
	logger    *slog.Logger
	noticeTTL time.Duration

	now func() time.Time
}

// NewTracker creates a quota tracker. reporter may be nil.
func NewTracker(store Store, gw gateway.Gateway, sched Scheduler, reporter Reporter, noticeTTL time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		gw:        gw,
		sched:     sched,
		reporter:  reporter,
		logger:    logger,
		noticeTTL: noticeTTL,
		now:       time.Now,
	}
}

// HandleMessage evaluates one counted group message. The caller has
// already established that the chat is an authorized group, the sender is
// not a bot, and the force-subscription gate allowed the message through.
// Gateway failures are logged and swallowed; they must never block
// message flow.
func (t *Tracker) HandleMessage(ctx context.Context, chatID, userID int64, messageID int, name string) error {
	group, err := t.store.GetGroup(chatID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if group == nil {
		return nil
	}

	now := t.now().UTC()
	today := now.Format(DateLayout)

	if err := t.store.EnsureUser(userID, chatID, today); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	user, err := t.store.GetUser(userID, chatID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user quota missing after ensure")
	}

	// Lazy daily rollover: staleness is resolved on next access, a user
	// inactive for days skips straight to a fresh day.
	if user.LastReset != today {
		user.MessageCount = 0
		user.LastReset = today
	}

	if user.ExemptUntil != nil && now.Before(*user.ExemptUntil) {
		return nil
	}
	if user.IsSpecial {
		return nil
	}

	user.MessageCount++
	if err := t.store.SaveCount(userID, chatID, user.MessageCount, user.LastReset); err != nil {
		return fmt.Errorf("save count: %w", err)
	}

	limit := EffectiveLimit(user, group)
	warnAt := group.WarnThreshold
	if warnAt <= 0 {
		warnAt = limit - 1
	}

	if user.MessageCount == warnAt && warnAt >= 1 {
		t.warn(ctx, chatID, userID, name, limit, user.MessageCount)
	}

	if user.MessageCount == limit+1 {
		t.block(ctx, chatID, userID, messageID, name, limit, group)
	}

	if user.MessageCount > limit && group.MuteEnabled {
		t.mute(ctx, chatID, userID, name, group)
	}

	return nil
}

func (t *Tracker) warn(ctx context.Context, chatID, userID int64, name string, limit, count int) {
	text := fmt.Sprintf(
		"⚠️ %s, you are close to today's message limit (%d/%d). Requests beyond the limit will be blocked.",
		gateway.Mention(userID, name), count, limit,
	)
	if _, err := t.gw.SendHTML(ctx, chatID, text); err != nil {
		t.logger.Error("failed to send warning", "error", err, "chat_id", chatID, "user_id", userID)
	}

	t.logger.Info("quota warning", "chat_id", chatID, "user_id", userID, "count", count, "limit", limit)
	t.report(ctx, fmt.Sprintf("WARN → %s (%d) in %d", name, userID, chatID))
}

// block fires exactly once per day, at the crossing point.
func (t *Tracker) block(ctx context.Context, chatID, userID int64, messageID int, name string, limit int, group *GroupConfig) {
	if err := t.gw.DeleteMessage(ctx, gateway.MessageRef{ChatID: chatID, MessageID: messageID}); err != nil {
		t.logger.Debug("failed to delete over-limit message", "error", err, "chat_id", chatID)
	}

	text := fmt.Sprintf(
		"🚫 %s, you reached today's limit of %d messages. Come back tomorrow!",
		gateway.Mention(userID, name), limit,
	)
	if group.MuteEnabled {
		text += fmt.Sprintf("\n\nYou are muted for %s.", ParseMuteDuration(group.MuteTime))
	}

	notice, err := t.gw.SendHTML(ctx, chatID, text)
	if err != nil {
		t.logger.Error("failed to send block notice", "error", err, "chat_id", chatID, "user_id", userID)
	} else {
		ref := notice
		t.sched.Once(t.noticeTTL, "delete-block-notice", func(ctx context.Context) {
			if err := t.gw.DeleteMessage(ctx, ref); err != nil {
				t.logger.Debug("failed to delete block notice", "error", err, "chat_id", ref.ChatID)
			}
		})
	}

	t.logger.Info("quota exceeded", "chat_id", chatID, "user_id", userID, "limit", limit)
	t.report(ctx, fmt.Sprintf("LIMIT CROSS → %s (%d) in %d", name, userID, chatID))
}

// mute re-issues the timed restriction on every over-limit message; the
// gateway call is idempotent.
func (t *Tracker) mute(ctx context.Context, chatID, userID int64, name string, group *GroupConfig) {
	until := t.now().UTC().Add(ParseMuteDuration(group.MuteTime))
	if err := t.gw.RestrictSend(ctx, chatID, userID, until); err != nil {
		t.logger.Error("failed to restrict member", "error", err, "chat_id", chatID, "user_id", userID)
		return
	}

	t.logger.Info("quota mute applied", "chat_id", chatID, "user_id", userID, "until", until)
	t.report(ctx, fmt.Sprintf("MUTED → %s (%d) in %d until %s", name, userID, chatID, until.Format(time.RFC3339)))
}

func (t *Tracker) report(ctx context.Context, text string) {
	if t.reporter != nil {
		t.reporter.Report(ctx, text)
	}
}

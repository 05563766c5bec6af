package gateway

import (
	"context"
	"fmt"
	"html"
	"time"
)

// Membership statuses reported by the platform. Anything outside the
// joined set (or a query error) is treated as not joined by callers.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// Joined reports whether a membership status counts as being inside the
// channel.
func Joined(status string) bool {
	switch status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	}
	return false
}

// Button is a single URL button attached to an outbound message.
type Button struct {
	Text string
	URL  string
}

// MessageRef identifies a sent message for later deletion.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Gateway is the capability set the moderation logic needs from the chat
// platform. All calls are potentially blocking I/O; failures on the
// moderation paths are best-effort and never surface to chat.
type Gateway interface {
	// MemberStatus queries a user's live membership status in a channel.
	MemberStatus(ctx context.Context, channelID, userID int64) (string, error)

	// CreateInviteLink creates a fresh invite link for a channel. When
	// joinRequest is true the link creates a join request instead of
	// joining directly.
	CreateInviteLink(ctx context.Context, channelID int64, joinRequest bool) (string, error)

	// RestrictSend removes a member's send permission until the given time.
	RestrictSend(ctx context.Context, chatID, userID int64, until time.Time) error

	// RestoreSend restores a member's full send permissions.
	RestoreSend(ctx context.Context, chatID, userID int64) error

	// SendMessage sends a plain-text message, optionally with URL buttons.
	SendMessage(ctx context.Context, chatID int64, text string, buttons []Button) (MessageRef, error)

	// SendHTML sends an HTML-formatted message (user mentions).
	SendHTML(ctx context.Context, chatID int64, html string) (MessageRef, error)

	// DeleteMessage deletes a previously sent or received message.
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Mention renders an HTML mention for a user.
func Mention(userID int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

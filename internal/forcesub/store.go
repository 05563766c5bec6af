package forcesub

import "time"

// Channel types. Request channels gate joining behind an approvable join
// request; direct channels can be joined instantly.
const (
	TypeRequest = "request"
	TypeDirect  = "direct"
)

// Channel is a required channel registered for a group.
type Channel struct {
	GroupID   int64
	ChannelID int64
	Type      string
	Active    bool
}

// MutedUser is a restriction applied by the force-sub enforcement path,
// tracked separately from quota mutes so it can be bulk-reverted.
type MutedUser struct {
	UserID  int64
	GroupID int64
	MutedAt time.Time
}

// Store defines persistence for the force-subscription records.
type Store interface {
	// IsEnabled reports whether force-subscription is on for a group; an
	// absent config row means disabled.
	IsEnabled(groupID int64) (bool, error)
	SetEnabled(groupID int64, enabled bool) error

	AddChannel(groupID, channelID int64, channelType string) error
	RemoveChannel(groupID, channelID int64) error
	ActiveChannels(groupID int64) ([]Channel, error)
	// RequestGroupsForChannel lists groups that require the channel as an
	// active request-type channel. Join-request events carry no group, so
	// pending rows fan out to every such group.
	RequestGroupsForChannel(channelID int64) ([]int64, error)

	IsVerified(userID, groupID int64) (bool, error)
	MarkVerified(userID, groupID int64, at time.Time) error
	// ClearGroupCache removes every verified mark and pending row for a
	// group, forcing re-verification.
	ClearGroupCache(groupID int64) error

	HasPending(userID, groupID, channelID int64) (bool, error)
	AddPending(userID, groupID, channelID int64, at time.Time) error
	DeletePendingForUser(userID, groupID int64) error
	// DeletePendingForChannel revokes the pending grace for a user on one
	// channel across all groups (left/kicked before approval).
	DeletePendingForChannel(userID, channelID int64) error

	AddMuted(userID, groupID int64, at time.Time) error
	DeleteMuted(userID, groupID int64) error
	ListMuted(groupID int64) ([]MutedUser, error)

	Close() error
}

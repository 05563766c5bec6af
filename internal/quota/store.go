package quota

import "time"

// DateLayout is the UTC calendar-date format used for lazy daily resets.
const DateLayout = "2006-01-02"

// FallbackLimit applies when a group row has no usable message limit.
const FallbackLimit = 3

// GroupConfig holds per-group moderation settings.
type GroupConfig struct {
	GroupID       int64
	MessageLimit  int
	WarnThreshold int // 0 = derive effective limit - 1
	MuteEnabled   bool
	MuteTime      string // duration string, e.g. "5m"
}

// UserQuota is the per-(user, group) daily counter record.
type UserQuota struct {
	UserID        int64
	GroupID       int64
	MessageCount  int
	LastReset     string // UTC date in DateLayout
	ExtendedLimit int    // 0 = no override
	IsSpecial     bool
	ExemptUntil   *time.Time
}

// EffectiveLimit resolves the limit for a user in a group: extended
// override first, then the group limit, then the hard-coded fallback.
func EffectiveLimit(u *UserQuota, g *GroupConfig) int {
	if u != nil && u.ExtendedLimit > 0 {
		return u.ExtendedLimit
	}
	if g != nil && g.MessageLimit > 0 {
		return g.MessageLimit
	}
	return FallbackLimit
}

// Defaults holds the set-on-insert values for newly authorized groups.
type Defaults struct {
	MessageLimit int
	MuteEnabled  bool
	MuteTime     string
}

// Store defines persistence for group settings, user counters and stats
// admins.
type Store interface {
	// GetGroup returns the group config, or nil if the group was never
	// authorized.
	GetGroup(groupID int64) (*GroupConfig, error)
	// EnsureGroup authorizes a group, applying defaults only on insert.
	EnsureGroup(groupID int64) error
	SetMessageLimit(groupID int64, limit int) error
	SetWarnThreshold(groupID int64, threshold int) error
	SetMuteEnabled(groupID int64, enabled bool) error
	SetMuteTime(groupID int64, muteTime string) error

	// EnsureUser creates the counter row if absent (count 0, last reset
	// today); an existing row is left untouched.
	EnsureUser(userID, groupID int64, today string) error
	GetUser(userID, groupID int64) (*UserQuota, error)
	// SaveCount persists the running counter and its reset date.
	SaveCount(userID, groupID int64, count int, lastReset string) error
	SetExtendedLimit(userID, groupID int64, limit int) error
	SetSpecial(userID, groupID int64, special bool) error
	// IsSpecial reports the permanent bypass flag; used by the
	// force-subscription verifier as well as the tracker.
	IsSpecial(userID, groupID int64) (bool, error)
	SetExemptUntil(userID, groupID int64, until *time.Time) error
	ResetCount(userID, groupID int64) error
	ResetAllCounts(groupID int64) error
	TopUsers(groupID int64, n int) ([]UserQuota, error)

	IsStatsAdmin(userID int64) (bool, error)
	AddStatsAdmin(userID int64) error

	Close() error
}

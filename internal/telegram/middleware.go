package telegram

import (
	"log/slog"

	"limit-tg-bot/internal/quota"
)

// Access gates the admin command surface. Unauthorized invocations of
// privileged commands are silent no-ops so the command set is never
// confirmed to arbitrary users.
type Access struct {
	ownerID    int64
	quotaStore quota.Store
	logger     *slog.Logger
}

// NewAccess creates the access checker.
func NewAccess(ownerID int64, quotaStore quota.Store, logger *slog.Logger) *Access {
	return &Access{
		ownerID:    ownerID,
		quotaStore: quotaStore,
		logger:     logger,
	}
}

// IsOwner checks if a user is the bot owner.
func (a *Access) IsOwner(userID int64) bool {
	return userID == a.ownerID
}

// IsStatsAdmin checks if a user may view other users' stats. The owner
// always qualifies.
func (a *Access) IsStatsAdmin(userID int64) bool {
	if a.IsOwner(userID) {
		return true
	}
	admin, err := a.quotaStore.IsStatsAdmin(userID)
	if err != nil {
		a.logger.Error("failed to check stats admin", "error", err, "user_id", userID)
		return false
	}
	return admin
}

// IsGroupAuthorized checks if a group has been activated by the owner.
func (a *Access) IsGroupAuthorized(groupID int64) bool {
	group, err := a.quotaStore.GetGroup(groupID)
	if err != nil {
		a.logger.Error("failed to check group authorization", "error", err, "group_id", groupID)
		return false
	}
	return group != nil
}

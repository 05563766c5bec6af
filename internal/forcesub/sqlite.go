package forcesub

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite for persistence
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed force-subscription store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS force_config (
			group_id INTEGER PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create force_config table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS force_channels (
			group_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (group_id, channel_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create force_channels table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS force_verified (
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			verified_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, group_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create force_verified table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS force_pending (
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			requested_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, group_id, channel_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create force_pending table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS force_muted (
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			muted_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, group_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create force_muted table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// IsEnabled reports whether force-subscription is on for a group
func (s *SQLiteStore) IsEnabled(groupID int64) (bool, error) {
	var enabled bool
	err := s.db.QueryRow("SELECT enabled FROM force_config WHERE group_id = ?", groupID).Scan(&enabled)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query force config: %w", err)
	}
	return enabled, nil
}

// SetEnabled turns force-subscription on or off for a group
func (s *SQLiteStore) SetEnabled(groupID int64, enabled bool) error {
	_, err := s.db.Exec(`
		INSERT INTO force_config (group_id, enabled) VALUES (?, ?)
		ON CONFLICT(group_id) DO UPDATE SET enabled = excluded.enabled
	`, groupID, enabled)

	if err != nil {
		return fmt.Errorf("set force config: %w", err)
	}
	return nil
}

// AddChannel registers a required channel for a group
func (s *SQLiteStore) AddChannel(groupID, channelID int64, channelType string) error {
	_, err := s.db.Exec(`
		INSERT INTO force_channels (group_id, channel_id, type, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(group_id, channel_id) DO UPDATE SET
			type = excluded.type,
			active = 1
	`, groupID, channelID, channelType)

	if err != nil {
		return fmt.Errorf("add force channel: %w", err)
	}
	return nil
}

// RemoveChannel drops a required channel from a group
func (s *SQLiteStore) RemoveChannel(groupID, channelID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM force_channels WHERE group_id = ? AND channel_id = ?",
		groupID, channelID,
	)
	if err != nil {
		return fmt.Errorf("remove force channel: %w", err)
	}
	return nil
}

// ActiveChannels lists the active required channels for a group
func (s *SQLiteStore) ActiveChannels(groupID int64) ([]Channel, error) {
	rows, err := s.db.Query(`
		SELECT group_id, channel_id, type, active
		FROM force_channels WHERE group_id = ? AND active = 1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query force channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.GroupID, &ch.ChannelID, &ch.Type, &ch.Active); err != nil {
			return nil, fmt.Errorf("scan force channel: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate force channels: %w", err)
	}
	return out, nil
}

// RequestGroupsForChannel lists groups requiring the channel as an active
// request-type channel
func (s *SQLiteStore) RequestGroupsForChannel(channelID int64) ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT group_id FROM force_channels
		WHERE channel_id = ? AND type = ? AND active = 1
	`, channelID, TypeRequest)
	if err != nil {
		return nil, fmt.Errorf("query request groups: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var groupID int64
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("scan request group: %w", err)
		}
		out = append(out, groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request groups: %w", err)
	}
	return out, nil
}

// IsVerified checks the verification cache for a user in a group
func (s *SQLiteStore) IsVerified(userID, groupID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT 1 FROM force_verified WHERE user_id = ? AND group_id = ?",
		userID, groupID,
	).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check verified: %w", err)
	}
	return true, nil
}

// MarkVerified records that all active channels were satisfied
func (s *SQLiteStore) MarkVerified(userID, groupID int64, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO force_verified (user_id, group_id, verified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, group_id) DO NOTHING
	`, userID, groupID, at)

	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// ClearGroupCache removes all verified marks and pending rows for a group
func (s *SQLiteStore) ClearGroupCache(groupID int64) error {
	if _, err := s.db.Exec("DELETE FROM force_verified WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("clear verified cache: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM force_pending WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("clear pending cache: %w", err)
	}
	return nil
}

// HasPending checks for an unapproved join request row
func (s *SQLiteStore) HasPending(userID, groupID, channelID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT 1 FROM force_pending
		WHERE user_id = ? AND group_id = ? AND channel_id = ?
	`, userID, groupID, channelID).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check pending: %w", err)
	}
	return true, nil
}

// AddPending records a submitted join request awaiting approval
func (s *SQLiteStore) AddPending(userID, groupID, channelID int64, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO force_pending (user_id, group_id, channel_id, requested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, group_id, channel_id) DO UPDATE SET
			requested_at = excluded.requested_at
	`, userID, groupID, channelID, at)

	if err != nil {
		return fmt.Errorf("add pending: %w", err)
	}
	return nil
}

// DeletePendingForUser removes every pending row for a user in a group
func (s *SQLiteStore) DeletePendingForUser(userID, groupID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM force_pending WHERE user_id = ? AND group_id = ?",
		userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("delete pending for user: %w", err)
	}
	return nil
}

// DeletePendingForChannel removes a user's pending rows for one channel
// across all groups
func (s *SQLiteStore) DeletePendingForChannel(userID, channelID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM force_pending WHERE user_id = ? AND channel_id = ?",
		userID, channelID,
	)
	if err != nil {
		return fmt.Errorf("delete pending for channel: %w", err)
	}
	return nil
}

// AddMuted records a force-sub restriction
func (s *SQLiteStore) AddMuted(userID, groupID int64, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO force_muted (user_id, group_id, muted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, group_id) DO UPDATE SET
			muted_at = excluded.muted_at
	`, userID, groupID, at)

	if err != nil {
		return fmt.Errorf("add muted: %w", err)
	}
	return nil
}

// DeleteMuted removes a force-sub restriction record
func (s *SQLiteStore) DeleteMuted(userID, groupID int64) error {
	_, err := s.db.Exec(
		"DELETE FROM force_muted WHERE user_id = ? AND group_id = ?",
		userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("delete muted: %w", err)
	}
	return nil
}

// ListMuted lists every force-sub restriction in a group
func (s *SQLiteStore) ListMuted(groupID int64) ([]MutedUser, error) {
	rows, err := s.db.Query(
		"SELECT user_id, group_id, muted_at FROM force_muted WHERE group_id = ?",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query muted: %w", err)
	}
	defer rows.Close()

	var out []MutedUser
	for rows.Next() {
		var m MutedUser
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.MutedAt); err != nil {
			return nil, fmt.Errorf("scan muted: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate muted: %w", err)
	}
	return out, nil
}

// Close releases database resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

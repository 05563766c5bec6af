package quota

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
	db       *sql.DB
	defaults Defaults
}

// NewSQLiteStore creates a new SQLite-backed quota store
func NewSQLiteStore(dbPath string, defaults Defaults) (*SQLiteStore, error) {
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
		CREATE TABLE IF NOT EXISTS groups (
			group_id INTEGER PRIMARY KEY,
			message_limit INTEGER NOT NULL DEFAULT 3,
			warn_threshold INTEGER NOT NULL DEFAULT 0,
			mute_enabled INTEGER NOT NULL DEFAULT 1,
			mute_time TEXT NOT NULL DEFAULT '5m'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create groups table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_quotas (
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			last_reset TEXT NOT NULL,
			extended_limit INTEGER,
			is_special INTEGER NOT NULL DEFAULT 0,
			rem_until DATETIME,
			PRIMARY KEY (user_id, group_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create user_quotas table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS stats_admins (
			user_id INTEGER PRIMARY KEY
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create stats_admins table: %w", err)
	}

	if defaults.MessageLimit < 1 {
		defaults.MessageLimit = FallbackLimit
	}
	if defaults.MuteTime == "" {
		defaults.MuteTime = "5m"
	}

	return &SQLiteStore{db: db, defaults: defaults}, nil
}

// GetGroup returns the group config, or nil if the group was never authorized
func (s *SQLiteStore) GetGroup(groupID int64) (*GroupConfig, error) {
	var g GroupConfig
	err := s.db.QueryRow(`
		SELECT group_id, message_limit, warn_threshold, mute_enabled, mute_time
		FROM groups WHERE group_id = ?
	`, groupID).Scan(&g.GroupID, &g.MessageLimit, &g.WarnThreshold, &g.MuteEnabled, &g.MuteTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &g, nil
}

// EnsureGroup authorizes a group, applying defaults only on insert
func (s *SQLiteStore) EnsureGroup(groupID int64) error {
	muteEnabled := 0
	if s.defaults.MuteEnabled {
		muteEnabled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO groups (group_id, message_limit, mute_enabled, mute_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id) DO NOTHING
	`, groupID, s.defaults.MessageLimit, muteEnabled, s.defaults.MuteTime)

	if err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}
	return nil
}

// SetMessageLimit updates a group's daily message limit
func (s *SQLiteStore) SetMessageLimit(groupID int64, limit int) error {
	if err := s.EnsureGroup(groupID); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE groups SET message_limit = ? WHERE group_id = ?", limit, groupID)
	if err != nil {
		return fmt.Errorf("set message limit: %w", err)
	}
	return nil
}

// SetWarnThreshold updates a group's warn threshold (0 = default)
func (s *SQLiteStore) SetWarnThreshold(groupID int64, threshold int) error {
	if err := s.EnsureGroup(groupID); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE groups SET warn_threshold = ? WHERE group_id = ?", threshold, groupID)
	if err != nil {
		return fmt.Errorf("set warn threshold: %w", err)
	}
	return nil
}

// SetMuteEnabled toggles over-limit muting for a group
func (s *SQLiteStore) SetMuteEnabled(groupID int64, enabled bool) error {
	if err := s.EnsureGroup(groupID); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE groups SET mute_enabled = ? WHERE group_id = ?", enabled, groupID)
	if err != nil {
		return fmt.Errorf("set mute enabled: %w", err)
	}
	return nil
}

// SetMuteTime updates a group's mute duration string
func (s *SQLiteStore) SetMuteTime(groupID int64, muteTime string) error {
	if err := s.EnsureGroup(groupID); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE groups SET mute_time = ? WHERE group_id = ?", muteTime, groupID)
	if err != nil {
		return fmt.Errorf("set mute time: %w", err)
	}
	return nil
}

// EnsureUser creates the counter row if absent; an existing row is untouched
func (s *SQLiteStore) EnsureUser(userID, groupID int64, today string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_quotas (user_id, group_id, message_count, last_reset)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(user_id, group_id) DO NOTHING
	`, userID, groupID, today)

	if err != nil {
		return fmt.Errorf("ensure user quota: %w", err)
	}
	return nil
}

// GetUser retrieves the counter row for a user in a group
func (s *SQLiteStore) GetUser(userID, groupID int64) (*UserQuota, error) {
	var u UserQuota
	var extended sql.NullInt64
	var remUntil sql.NullTime

	err := s.db.QueryRow(`
		SELECT user_id, group_id, message_count, last_reset, extended_limit, is_special, rem_until
		FROM user_quotas WHERE user_id = ? AND group_id = ?
	`, userID, groupID).Scan(
		&u.UserID,
		&u.GroupID,
		&u.MessageCount,
		&u.LastReset,
		&extended,
		&u.IsSpecial,
		&remUntil,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user quota: %w", err)
	}

	if extended.Valid {
		u.ExtendedLimit = int(extended.Int64)
	}
	if remUntil.Valid {
		u.ExemptUntil = &remUntil.Time
	}
	return &u, nil
}

// SaveCount persists the running counter and its reset date
func (s *SQLiteStore) SaveCount(userID, groupID int64, count int, lastReset string) error {
	_, err := s.db.Exec(`
		UPDATE user_quotas SET message_count = ?, last_reset = ?
		WHERE user_id = ? AND group_id = ?
	`, count, lastReset, userID, groupID)

	if err != nil {
		return fmt.Errorf("save count: %w", err)
	}
	return nil
}

// SetExtendedLimit sets a per-user limit override; 0 clears it
func (s *SQLiteStore) SetExtendedLimit(userID, groupID int64, limit int) error {
	var value any
	if limit > 0 {
		value = limit
	}
	_, err := s.db.Exec(`
		UPDATE user_quotas SET extended_limit = ?
		WHERE user_id = ? AND group_id = ?
	`, value, userID, groupID)

	if err != nil {
		return fmt.Errorf("set extended limit: %w", err)
	}
	return nil
}

// SetSpecial toggles the permanent bypass flag
func (s *SQLiteStore) SetSpecial(userID, groupID int64, special bool) error {
	_, err := s.db.Exec(`
		UPDATE user_quotas SET is_special = ?
		WHERE user_id = ? AND group_id = ?
	`, special, userID, groupID)

	if err != nil {
		return fmt.Errorf("set special: %w", err)
	}
	return nil
}

// IsSpecial reports the permanent bypass flag
func (s *SQLiteStore) IsSpecial(userID, groupID int64) (bool, error) {
	var special bool
	err := s.db.QueryRow(`
		SELECT is_special FROM user_quotas
		WHERE user_id = ? AND group_id = ?
	`, userID, groupID).Scan(&special)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check special: %w", err)
	}
	return special, nil
}

// SetExemptUntil sets or clears the temporary full exemption expiry
func (s *SQLiteStore) SetExemptUntil(userID, groupID int64, until *time.Time) error {
	var value any
	if until != nil {
		value = *until
	}
	_, err := s.db.Exec(`
		UPDATE user_quotas SET rem_until = ?
		WHERE user_id = ? AND group_id = ?
	`, value, userID, groupID)

	if err != nil {
		return fmt.Errorf("set exempt until: %w", err)
	}
	return nil
}

// ResetCount zeroes one user's daily counter
func (s *SQLiteStore) ResetCount(userID, groupID int64) error {
	_, err := s.db.Exec(`
		UPDATE user_quotas SET message_count = 0
		WHERE user_id = ? AND group_id = ?
	`, userID, groupID)

	if err != nil {
		return fmt.Errorf("reset count: %w", err)
	}
	return nil
}

// ResetAllCounts zeroes every counter in a group
func (s *SQLiteStore) ResetAllCounts(groupID int64) error {
	_, err := s.db.Exec("UPDATE user_quotas SET message_count = 0 WHERE group_id = ?", groupID)
	if err != nil {
		return fmt.Errorf("reset all counts: %w", err)
	}
	return nil
}

// TopUsers returns the highest counters in a group
func (s *SQLiteStore) TopUsers(groupID int64, n int) ([]UserQuota, error) {
	rows, err := s.db.Query(`
		SELECT user_id, group_id, message_count, last_reset
		FROM user_quotas WHERE group_id = ?
		ORDER BY message_count DESC LIMIT ?
	`, groupID, n)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close()

	var out []UserQuota
	for rows.Next() {
		var u UserQuota
		if err := rows.Scan(&u.UserID, &u.GroupID, &u.MessageCount, &u.LastReset); err != nil {
			return nil, fmt.Errorf("scan top user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top users: %w", err)
	}
	return out, nil
}

// IsStatsAdmin checks if a user may view other users' stats
func (s *SQLiteStore) IsStatsAdmin(userID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM stats_admins WHERE user_id = ?", userID).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check stats admin: %w", err)
	}
	return true, nil
}

// AddStatsAdmin promotes a user to stats admin
func (s *SQLiteStore) AddStatsAdmin(userID int64) error {
	_, err := s.db.Exec(`
		INSERT INTO stats_admins (user_id) VALUES (?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID)

	if err != nil {
		return fmt.Errorf("add stats admin: %w", err)
	}
	return nil
}

// Close releases database resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

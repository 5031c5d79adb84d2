// Copyright 2024 Portfolio Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package security

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// MaxLogEntriesPerUser caps the durable per-user security log; oldest
	// entries are evicted first.
	MaxLogEntriesPerUser = 100
	// userIDKey is the fixed settings key under which the visitor id persists
	userIDKey = "chat_user_id"
)

// AttemptStatus marks a logged attempt as accepted or rejected.
type AttemptStatus string

const (
	// StatusSuccess marks an input that passed every gate check
	StatusSuccess AttemptStatus = "SUCCESS"
	// StatusFailed marks an input that was rejected
	StatusFailed AttemptStatus = "FAILED"
)

// LogEntry is one durable security log record.
type LogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Input     string        `json:"input"`
	Status    AttemptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	UserAgent string        `json:"user_agent"`
}

// Store persists security logs, ban markers and the visitor identifier in a
// local SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the security database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open security database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize security schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS security_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			input TEXT,
			status TEXT NOT NULL,
			error TEXT,
			user_agent TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_logs_user ON security_logs(user_id, id)`,
		`CREATE TABLE IF NOT EXISTS bans (
			user_id TEXT PRIMARY KEY,
			banned_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AppendLog appends a log entry for userID, evicting the oldest entries beyond
// the per-user cap.
func (s *Store) AppendLog(userID string, entry LogEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO security_logs (user_id, timestamp, input, status, error, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, entry.Timestamp, entry.Input, string(entry.Status), entry.Error, entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security log: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM security_logs
		 WHERE user_id = ? AND id NOT IN (
			SELECT id FROM security_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?
		 )`,
		userID, userID, MaxLogEntriesPerUser,
	)
	if err != nil {
		return fmt.Errorf("failed to trim security log: %w", err)
	}

	return nil
}

// Logs returns the log entries for userID in insertion order.
func (s *Store) Logs(userID string) ([]LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, input, status, error, user_agent
		 FROM security_logs WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query security logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var status string
		if err := rows.Scan(&entry.Timestamp, &entry.Input, &status, &entry.Error, &entry.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to scan security log: %w", err)
		}
		entry.Status = AttemptStatus(status)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security logs: %w", err)
	}

	return entries, nil
}

// RecordBan durably marks userID as banned at the given time.
func (s *Store) RecordBan(userID string, bannedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bans (user_id, banned_at) VALUES (?, ?)`,
		userID, bannedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record ban: %w", err)
	}
	return nil
}

// BanTime returns the ban timestamp for userID, or the zero time if the user
// is not banned.
func (s *Store) BanTime(userID string) (time.Time, error) {
	var bannedAt time.Time
	err := s.db.QueryRow(`SELECT banned_at FROM bans WHERE user_id = ?`, userID).Scan(&bannedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query ban: %w", err)
	}
	return bannedAt, nil
}

// ClearBan removes the ban marker for userID.
func (s *Store) ClearBan(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM bans WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear ban: %w", err)
	}
	return nil
}

// UserID returns the persistent visitor identifier, generating and storing a
// new one on first use.
func (s *Store) UserID(generate func() string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, userIDKey).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to query user id: %w", err)
	}

	id = generate()
	if _, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, userIDKey, id); err != nil {
		return "", fmt.Errorf("failed to persist user id: %w", err)
	}
	return id, nil
}

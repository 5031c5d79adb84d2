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
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxFailedAttempts is the failure count that triggers a ban
	MaxFailedAttempts = 3
	// BanDuration is the rolling window for counting failures and the lockout
	// duration once banned.
	BanDuration = 5 * time.Minute
)

// Logger records every gate attempt, tracks recent failures per user and bans
// a user on repeated failures. Bans and logs are durable; the failure window
// is tracked in memory.
type Logger struct {
	mu                 sync.Mutex
	store              *Store
	logger             *zap.Logger
	suspiciousAttempts map[string][]time.Time
	userAgent          string
	now                func() time.Time
}

// NewLogger creates a security attempt logger backed by the given store.
// userAgent identifies the client environment in durable log entries.
func NewLogger(store *Store, userAgent string, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		store:              store,
		logger:             logger,
		suspiciousAttempts: make(map[string][]time.Time),
		userAgent:          userAgent,
		now:                time.Now,
	}
}

// LogAttempt appends a durable log entry for the attempt. A third failure
// within the rolling window durably bans the user and returns the ban failure
// immediately; otherwise the original outcome stands.
func (l *Logger) LogAttempt(userID, input string, status AttemptStatus, attemptErr error) error {
	entry := LogEntry{
		Timestamp: l.now(),
		Input:     input,
		Status:    status,
		UserAgent: l.userAgent,
	}
	if attemptErr != nil {
		entry.Error = attemptErr.Error()
	}

	if err := l.store.AppendLog(userID, entry); err != nil {
		l.logger.Error("Failed to persist security log", zap.Error(err), zap.String("user_id", userID))
	}

	if status == StatusFailed {
		return l.handleFailedAttempt(userID, entry)
	}
	return nil
}

// IsBanned reports whether userID carries an active ban marker. Expired bans
// are cleared on read.
func (l *Logger) IsBanned(userID string) (bool, error) {
	bannedAt, err := l.store.BanTime(userID)
	if err != nil {
		return false, err
	}
	if bannedAt.IsZero() {
		return false, nil
	}

	if l.now().Sub(bannedAt) >= BanDuration {
		if err := l.store.ClearBan(userID); err != nil {
			l.logger.Error("Failed to clear expired ban", zap.Error(err), zap.String("user_id", userID))
		}
		return false, nil
	}
	return true, nil
}

func (l *Logger) handleFailedAttempt(userID string, entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := pruneOld(l.suspiciousAttempts[userID], now, BanDuration)
	recent = append(recent, entry.Timestamp)
	l.suspiciousAttempts[userID] = recent

	if len(recent) >= MaxFailedAttempts {
		if err := l.store.RecordBan(userID, now); err != nil {
			l.logger.Error("Failed to record ban", zap.Error(err), zap.String("user_id", userID))
		}
		l.logger.Warn("User banned after repeated failures",
			zap.String("user_id", userID),
			zap.Int("failed_attempts", len(recent)),
		)
		return NewSecurityError(CodeUserBanned)
	}

	return nil
}

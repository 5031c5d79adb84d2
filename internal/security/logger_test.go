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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogAttemptBansOnThirdRecentFailure(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, "test", zap.NewNop())

	failure := NewSecurityError(CodeSuspiciousPattern)

	require.NoError(t, logger.LogAttempt("user-1", "bad 1", StatusFailed, failure))
	require.NoError(t, logger.LogAttempt("user-1", "bad 2", StatusFailed, failure))

	err := logger.LogAttempt("user-1", "bad 3", StatusFailed, failure)
	require.Error(t, err)

	var secErr *SecurityError
	require.True(t, IsSecurityError(err, &secErr))
	assert.Equal(t, CodeUserBanned, secErr.Code)

	banned, err := logger.IsBanned("user-1")
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestLogAttemptFailuresOutsideWindowDoNotBan(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, "test", zap.NewNop())

	current := time.Now()
	logger.now = func() time.Time { return current }

	failure := NewSecurityError(CodeDangerousCommand)

	require.NoError(t, logger.LogAttempt("user-1", "bad 1", StatusFailed, failure))
	require.NoError(t, logger.LogAttempt("user-1", "bad 2", StatusFailed, failure))

	// The first two failures age out of the rolling window.
	current = current.Add(BanDuration + time.Second)
	assert.NoError(t, logger.LogAttempt("user-1", "bad 3", StatusFailed, failure))
}

func TestSuccessesDoNotCountTowardBan(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, "test", zap.NewNop())

	for i := 0; i < MaxFailedAttempts; i++ {
		require.NoError(t, logger.LogAttempt("user-1", "bonjour", StatusSuccess, nil))
	}

	banned, err := logger.IsBanned("user-1")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanExpiresAfterLockout(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, "test", zap.NewNop())

	current := time.Now()
	logger.now = func() time.Time { return current }

	failure := NewSecurityError(CodeSuspiciousPattern)
	for i := 0; i < MaxFailedAttempts; i++ {
		_ = logger.LogAttempt("user-1", "bad", StatusFailed, failure)
	}

	banned, err := logger.IsBanned("user-1")
	require.NoError(t, err)
	require.True(t, banned)

	current = current.Add(BanDuration + time.Second)

	banned, err = logger.IsBanned("user-1")
	require.NoError(t, err)
	assert.False(t, banned)

	// The expired marker is cleared durably on read.
	banTime, err := store.BanTime("user-1")
	require.NoError(t, err)
	assert.True(t, banTime.IsZero())
}

func TestBanSurvivesNewLoggerOnSameStore(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, "test", zap.NewNop())

	failure := NewSecurityError(CodeSuspiciousPattern)
	for i := 0; i < MaxFailedAttempts; i++ {
		_ = logger.LogAttempt("user-1", "bad", StatusFailed, failure)
	}

	// A fresh logger over the same store still sees the durable ban.
	reloaded := NewLogger(store, "test", zap.NewNop())
	banned, err := reloaded.IsBanned("user-1")
	require.NoError(t, err)
	assert.True(t, banned)
}

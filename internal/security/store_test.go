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
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "security.db")
	store, err := NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Failed to close store: %v", err)
		}
	})
	return store
}

func TestAppendLogAndReadBack(t *testing.T) {
	store := newTestStore(t)

	entry := LogEntry{
		Timestamp: time.Now(),
		Input:     "bonjour",
		Status:    StatusSuccess,
		UserAgent: "test",
	}
	require.NoError(t, store.AppendLog("user-1", entry))

	entries, err := store.Logs("user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bonjour", entries[0].Input)
	assert.Equal(t, StatusSuccess, entries[0].Status)
	assert.Equal(t, "test", entries[0].UserAgent)
}

func TestAppendLogEvictsOldestBeyondCap(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < MaxLogEntriesPerUser+10; i++ {
		entry := LogEntry{
			Timestamp: time.Now(),
			Input:     fmt.Sprintf("message %d", i),
			Status:    StatusSuccess,
		}
		require.NoError(t, store.AppendLog("user-1", entry))
	}

	entries, err := store.Logs("user-1")
	require.NoError(t, err)
	require.Len(t, entries, MaxLogEntriesPerUser)

	// The oldest ten entries must be gone.
	assert.Equal(t, "message 10", entries[0].Input)
	assert.Equal(t, fmt.Sprintf("message %d", MaxLogEntriesPerUser+9), entries[len(entries)-1].Input)
}

func TestLogCapIsPerUser(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < MaxLogEntriesPerUser; i++ {
		require.NoError(t, store.AppendLog("user-1", LogEntry{Timestamp: time.Now(), Status: StatusSuccess}))
	}
	require.NoError(t, store.AppendLog("user-2", LogEntry{Timestamp: time.Now(), Status: StatusFailed}))

	entries, err := store.Logs("user-2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBanRoundTrip(t *testing.T) {
	store := newTestStore(t)

	bannedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.RecordBan("user-1", bannedAt))

	got, err := store.BanTime("user-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(bannedAt))

	require.NoError(t, store.ClearBan("user-1"))

	got, err = store.BanTime("user-1")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestBanTimeForUnknownUserIsZero(t *testing.T) {
	store := newTestStore(t)

	got, err := store.BanTime("nobody")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestUserIDPersistsAcrossCalls(t *testing.T) {
	store := newTestStore(t)

	calls := 0
	generate := func() string {
		calls++
		return fmt.Sprintf("generated-%d", calls)
	}

	first, err := store.UserID(generate)
	require.NoError(t, err)
	assert.Equal(t, "generated-1", first)

	second, err := store.UserID(generate)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

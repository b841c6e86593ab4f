// Copyright 2026 The WorldMirror Authors
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

package vault

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// newTestVault swaps the real credential store for the library's
// in-memory mock.
func newTestVault(t *testing.T) *Vault {
	t.Helper()
	keyring.MockInit()
	return New(nil)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "worldmirror.sync.token", EntryName("sync", "token"))
	assert.Equal(t, "worldmirror.providers.api_key", EntryName("providers", "api_key"))
}

func TestVault_SetGetDelete(t *testing.T) {
	v := newTestVault(t)

	t.Run("set then get returns the stored value", func(t *testing.T) {
		res := v.Set("sync", "token", "abc123")
		require.True(t, res.Success)
		require.Nil(t, res.Error)

		res = v.Get("sync", "token")
		require.True(t, res.Success)
		require.NotNil(t, res.Value)
		assert.Equal(t, "abc123", *res.Value)
	})

	t.Run("set overwrites an existing value", func(t *testing.T) {
		require.True(t, v.Set("sync", "token", "first").Success)
		require.True(t, v.Set("sync", "token", "second").Success)

		res := v.Get("sync", "token")
		require.NotNil(t, res.Value)
		assert.Equal(t, "second", *res.Value)
	})

	t.Run("get after delete returns empty success", func(t *testing.T) {
		require.True(t, v.Set("sync", "token", "abc123").Success)

		res := v.Delete("sync", "token")
		require.True(t, res.Success)

		res = v.Get("sync", "token")
		assert.True(t, res.Success)
		assert.Nil(t, res.Value)
		assert.Nil(t, res.Error)
	})
}

func TestVault_GetAbsent(t *testing.T) {
	v := newTestVault(t)

	// Absence is a valid state, never an operational failure.
	res := v.Get("sync", "never-set")
	assert.True(t, res.Success)
	assert.Nil(t, res.Value)
	assert.Nil(t, res.Error)
}

func TestVault_DeleteAbsent(t *testing.T) {
	v := newTestVault(t)

	res := v.Delete("sync", "never-set")
	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
}

func TestVault_ServiceKeyIsolation(t *testing.T) {
	v := newTestVault(t)

	require.True(t, v.Set("sync", "token", "sync-secret").Success)
	require.True(t, v.Set("backup", "token", "backup-secret").Success)

	res := v.Get("sync", "token")
	require.NotNil(t, res.Value)
	assert.Equal(t, "sync-secret", *res.Value)

	res = v.Get("backup", "token")
	require.NotNil(t, res.Value)
	assert.Equal(t, "backup-secret", *res.Value)

	// Deleting one service's entry leaves the other untouched.
	require.True(t, v.Delete("sync", "token").Success)
	res = v.Get("backup", "token")
	require.NotNil(t, res.Value)
	assert.Equal(t, "backup-secret", *res.Value)
}

func TestVault_Available(t *testing.T) {
	v := newTestVault(t)
	assert.True(t, v.Available())
}

func TestVault_LogsNeverCarrySecrets(t *testing.T) {
	keyring.MockInit()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	v := New(logger)

	require.True(t, v.Set("sync", "token", "hunter2-secret").Success)

	out := buf.String()
	assert.NotContains(t, out, "hunter2-secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, `"service":"sync"`)
	assert.Contains(t, out, `"key":"token"`)
}

package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_FreshInstall(t *testing.T) {
	store := NewStateStore(t.TempDir())

	state, err := store.Load()
	require.NoError(t, err)

	assert.NotEmpty(t, state.DeviceID)
	assert.Equal(t, StatusIdle, state.Status)
	assert.Nil(t, state.Current)
	assert.False(t, state.Pending())
}

func TestStateStore_DeviceIDStable(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStateStore(dir).Load()
	require.NoError(t, err)
	second, err := NewStateStore(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID)
}

func TestStateStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(dir)

	state, err := store.Load()
	require.NoError(t, err)

	now := time.Now()
	state.Status = StatusPending
	state.Current = &Generation{
		ReleaseID: "rel-1",
		Version:   "1.2.0",
		Hash:      "sha256:abc",
		Path:      filepath.Join(dir, "bundles", "rel-1.bundle"),
	}
	state.PendingSince = &now
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusPending, loaded.Status)
	require.NotNil(t, loaded.Current)
	assert.Equal(t, "rel-1", loaded.Current.ReleaseID)
	assert.True(t, loaded.Pending())
}

func TestStateStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(dir)

	state, err := store.Load()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(state))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "update_state.json", entries[0].Name())
}

func TestStateStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update_state.json"), []byte("{truncated"), 0o600))

	_, err := NewStateStore(dir).Load()
	assert.Error(t, err)
}

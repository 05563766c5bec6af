package forcesub

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "force.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnabledDefaultsOff(t *testing.T) {
	store := newSQLiteTestStore(t)

	enabled, err := store.IsEnabled(1)
	require.NoError(t, err)
	assert.False(t, enabled, "absent config row means disabled")

	require.NoError(t, store.SetEnabled(1, true))
	enabled, err = store.IsEnabled(1)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, store.SetEnabled(1, false))
	enabled, err = store.IsEnabled(1)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestChannelRegistration(t *testing.T) {
	store := newSQLiteTestStore(t)

	require.NoError(t, store.AddChannel(1, 100, TypeDirect))
	require.NoError(t, store.AddChannel(1, 200, TypeRequest))

	channels, err := store.ActiveChannels(1)
	require.NoError(t, err)
	assert.Len(t, channels, 2)

	// Re-adding changes the type in place.
	require.NoError(t, store.AddChannel(1, 100, TypeRequest))
	channels, err = store.ActiveChannels(1)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	for _, ch := range channels {
		assert.Equal(t, TypeRequest, ch.Type)
	}

	require.NoError(t, store.RemoveChannel(1, 100))
	channels, err = store.ActiveChannels(1)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, int64(200), channels[0].ChannelID)
}

func TestRequestGroupsForChannel(t *testing.T) {
	store := newSQLiteTestStore(t)

	require.NoError(t, store.AddChannel(1, 100, TypeRequest))
	require.NoError(t, store.AddChannel(2, 100, TypeRequest))
	require.NoError(t, store.AddChannel(3, 100, TypeDirect))

	groups, err := store.RequestGroupsForChannel(100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, groups, "direct-type rows are excluded")
}

func TestVerifiedCacheLifecycle(t *testing.T) {
	store := newSQLiteTestStore(t)
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	verified, err := store.IsVerified(7, 1)
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, store.MarkVerified(7, 1, at))
	require.NoError(t, store.MarkVerified(7, 1, at.Add(time.Hour)), "re-marking is a no-op")

	verified, err = store.IsVerified(7, 1)
	require.NoError(t, err)
	assert.True(t, verified)

	// Same user, different group: separate mark.
	verified, err = store.IsVerified(7, 2)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestClearGroupCache(t *testing.T) {
	store := newSQLiteTestStore(t)
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkVerified(7, 1, at))
	require.NoError(t, store.AddPending(8, 1, 100, at))
	require.NoError(t, store.MarkVerified(7, 2, at))

	require.NoError(t, store.ClearGroupCache(1))

	verified, err := store.IsVerified(7, 1)
	require.NoError(t, err)
	assert.False(t, verified)
	pending, err := store.HasPending(8, 1, 100)
	require.NoError(t, err)
	assert.False(t, pending)

	verified, err = store.IsVerified(7, 2)
	require.NoError(t, err)
	assert.True(t, verified, "other groups keep their marks")
}

func TestPendingLifecycle(t *testing.T) {
	store := newSQLiteTestStore(t)
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddPending(7, 1, 100, at))
	require.NoError(t, store.AddPending(7, 2, 100, at))
	require.NoError(t, store.AddPending(7, 1, 200, at))

	pending, err := store.HasPending(7, 1, 100)
	require.NoError(t, err)
	assert.True(t, pending)

	// Per-channel delete spans groups.
	require.NoError(t, store.DeletePendingForChannel(7, 100))
	for _, groupID := range []int64{1, 2} {
		pending, err = store.HasPending(7, groupID, 100)
		require.NoError(t, err)
		assert.False(t, pending)
	}
	pending, err = store.HasPending(7, 1, 200)
	require.NoError(t, err)
	assert.True(t, pending)

	// Per-user delete is scoped to one group.
	require.NoError(t, store.DeletePendingForUser(7, 1))
	pending, err = store.HasPending(7, 1, 200)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestMutedRecords(t *testing.T) {
	store := newSQLiteTestStore(t)
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AddMuted(7, 1, at))
	require.NoError(t, store.AddMuted(8, 1, at))
	require.NoError(t, store.AddMuted(7, 1, at.Add(time.Minute)), "re-mute refreshes the row")

	muted, err := store.ListMuted(1)
	require.NoError(t, err)
	assert.Len(t, muted, 2)

	require.NoError(t, store.DeleteMuted(7, 1))
	require.NoError(t, store.DeleteMuted(7, 1), "deleting an absent row is fine")

	muted, err = store.ListMuted(1)
	require.NoError(t, err)
	require.Len(t, muted, 1)
	assert.Equal(t, int64(8), muted[0].UserID)
}

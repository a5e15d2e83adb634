package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/calagent/core"
)

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()

	t.Run("get creates lazily", func(t *testing.T) {
		sess, err := store.Get("user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", sess.ID)
		assert.Equal(t, core.StateComposing, sess.State)
		assert.Empty(t, sess.Turns)
	})

	t.Run("append turn is visible on the next get", func(t *testing.T) {
		require.NoError(t, store.AppendTurn("user-1", core.NewUserTurn("book a meeting")))

		sess, err := store.Get("user-1")
		require.NoError(t, err)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, "book a meeting", sess.Turns[0].Text)
	})

	t.Run("returned session is a clone", func(t *testing.T) {
		sess, err := store.Get("user-1")
		require.NoError(t, err)
		sess.Turns[0].Text = "mutated"

		again, err := store.Get("user-1")
		require.NoError(t, err)
		assert.Equal(t, "book a meeting", again.Turns[0].Text)
	})

	t.Run("thread id persists on the stored session", func(t *testing.T) {
		require.NoError(t, store.SetThreadID("user-1", "thread_abc"))

		sess, err := store.Get("user-1")
		require.NoError(t, err)
		assert.Equal(t, "thread_abc", sess.ThreadID)
	})

	t.Run("create overwrites", func(t *testing.T) {
		sess, err := store.Create("user-1")
		require.NoError(t, err)
		assert.Empty(t, sess.Turns)
		assert.Empty(t, sess.ThreadID)
	})
}

func TestInMemoryThreadLookup(t *testing.T) {
	lookup := NewInMemoryThreadLookup()

	_, ok, err := lookup.Lookup("profile-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lookup.Save("profile-1", "thread_abc"))

	id, ok, err := lookup.Lookup("profile-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "thread_abc", id)
}

func TestFileThreadLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.json")
	lookup := NewFileThreadLookup(path)

	t.Run("lookup on a missing file reports not found", func(t *testing.T) {
		_, ok, err := lookup.Lookup("profile-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("save then lookup round-trips", func(t *testing.T) {
		require.NoError(t, lookup.Save("profile-1", "thread_abc"))
		require.NoError(t, lookup.Save("profile-2", "thread_def"))

		id, ok, err := lookup.Lookup("profile-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "thread_abc", id)
	})

	t.Run("mapping survives a fresh instance", func(t *testing.T) {
		reopened := NewFileThreadLookup(path)
		id, ok, err := reopened.Lookup("profile-2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "thread_def", id)
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, lookup.Save("profile-1", "thread_xyz"))
		id, _, err := lookup.Lookup("profile-1")
		require.NoError(t, err)
		assert.Equal(t, "thread_xyz", id)
	})
}

package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundtrip(t *testing.T) {
	store := openTestStore(t)

	in := &Session{
		Name:      "debian-amd64-vm1234",
		PID:       4242,
		SSHPort:   22345,
		SeedPID:   4243,
		SeedPort:  8101,
		SeedDir:   "/data/debian-amd64-vm1234-seed",
		StartedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Put(in))

	out, err := store.Get(in.Name)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.PID, out.PID)
	assert.Equal(t, in.SSHPort, out.SSHPort)
	assert.Equal(t, in.SeedPID, out.SeedPID)
	assert.Equal(t, in.SeedPort, out.SeedPort)
	assert.Equal(t, in.SeedDir, out.SeedDir)
	assert.True(t, in.StartedAt.Equal(out.StartedAt))
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)

	out, err := store.Get("no-such-instance")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStorePutOverwrites(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(&Session{Name: "a", PID: 1}))
	require.NoError(t, store.Put(&Session{Name: "a", PID: 2}))

	out, err := store.Get("a")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 2, out.PID)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(&Session{Name: "a", PID: 1}))
	require.NoError(t, store.Delete("a"))

	out, err := store.Get("a")
	require.NoError(t, err)
	assert.Nil(t, out)

	// Deleting an absent record is not an error.
	assert.NoError(t, store.Delete("a"))
}

func TestStoreList(t *testing.T) {
	store := openTestStore(t)

	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(&Session{Name: name, PID: 1}))
	}

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	var names []string
	for _, s := range sessions {
		names = append(names, s.Name)
	}
	// bbolt iterates keys in byte order.
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(&Session{Name: "a", PID: 7}))
	require.NoError(t, store.Close())

	store, err = OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	out, err := store.Get("a")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 7, out.PID)
}

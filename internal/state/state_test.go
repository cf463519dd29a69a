package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndLookup(t *testing.T) {
	store := NewStore(t.TempDir())

	_, ok, err := store.Lookup("/work/shop")
	require.NoError(t, err)
	assert.False(t, ok)

	session, err := store.Record("/work/shop",
		ServerRecord{LastHost: "192.168.1.20", LastPort: 3000, Framework: "Next.js"},
		ServerRecord{LastHost: "192.168.1.20", LastPort: 8081, Framework: "Expo"},
	)
	require.NoError(t, err)
	_, err = uuid.Parse(session.ID)
	assert.NoError(t, err)

	got, ok, err := store.Lookup("/work/shop")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, 3000, got.WebServer.LastPort)
	assert.Equal(t, 8081, got.AppServer.LastPort)
	assert.True(t, session.StartedAt.Equal(got.StartedAt))
}

func TestStore_RecordReplacesPreviousSession(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.Record("/work/shop", ServerRecord{LastPort: 3000}, ServerRecord{LastPort: 8081})
	require.NoError(t, err)
	second, err := store.Record("/work/shop", ServerRecord{LastPort: 3001}, ServerRecord{LastPort: 8082})
	require.NoError(t, err)
	_, err = store.Record("/work/blog", ServerRecord{LastPort: 3002}, ServerRecord{LastPort: 8083})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	f, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, f.Sessions, 2)
	assert.Equal(t, 3001, f.Sessions["/work/shop"].WebServer.LastPort)
}

func TestStore_CorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	f, err := NewStore(dir).Load()
	require.NoError(t, err)
	assert.Empty(t, f.Sessions)
}

func TestStore_LogsAndForget(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Record("/work/shop", ServerRecord{}, ServerRecord{})
	require.NoError(t, err)

	logFile, err := store.OpenLog("/work/shop", "web")
	require.NoError(t, err)
	_, err = logFile.WriteString("[Web] ready\n")
	require.NoError(t, err)
	require.NoError(t, logFile.Close())

	assert.Equal(t, store.LogDir("/work/shop"), filepath.Dir(logFile.Name()))
	assert.Equal(t, store.LogPath("/work/shop", "web"), logFile.Name())
	assert.Contains(t, filepath.Base(store.LogDir("/work/shop")), "shop-")
	assert.NotEqual(t, store.LogDir("/work/shop"), store.LogDir("/other/shop"))

	require.NoError(t, store.Forget("/work/shop"))
	_, ok, err := store.Lookup("/work/shop")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(store.LogDir("/work/shop"))
	assert.True(t, os.IsNotExist(err))
}

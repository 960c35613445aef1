package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "nested", "prefs.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Preferences{}, f.Preferences())
	assert.True(t, f.LastFullSync().Equal(Epoch))
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	f, err := Open(path)
	require.NoError(t, err)

	prefs := Preferences{OpenExternally: true, DefaultUnread: true}
	require.NoError(t, f.SetPreferences(prefs))

	synced := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.SetLastFullSync(synced))

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, prefs, reloaded.Preferences())
	assert.True(t, reloaded.LastFullSync().Equal(synced))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "open_externally: true")
	assert.Contains(t, string(data), "last_sync:")
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_unread: [oops"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

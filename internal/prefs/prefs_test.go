package prefs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkPanter/gitlock/internal/prefs"
)

func stores(t *testing.T) map[string]prefs.Store {
	t.Helper()
	db, err := prefs.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]prefs.Store{"memory": prefs.NewMemoryStore(), "sqlite": db}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("username")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("username", "alice"))
			require.NoError(t, s.Set("username", "bob"))
			v, ok, err := s.Get("username")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "bob", v)

			require.NoError(t, s.Delete("username"))
			_, ok, _ = s.Get("username")
			assert.False(t, ok)
		})
	}
}

func TestTypedHelpers(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, prefs.Bool(s, "enabled", true))
			require.NoError(t, prefs.SetBool(s, "enabled", false))
			assert.False(t, prefs.Bool(s, "enabled", true))

			assert.Equal(t, int64(60), prefs.Int64(s, "renewIntervalSeconds", 60))
			require.NoError(t, prefs.SetInt64(s, "renewIntervalSeconds", 15))
			assert.Equal(t, int64(15), prefs.Int64(s, "renewIntervalSeconds", 60))

			require.NoError(t, s.Set("renewIntervalSeconds", "soon"))
			assert.Equal(t, int64(60), prefs.Int64(s, "renewIntervalSeconds", 60))

			assert.Equal(t, "none", prefs.String(s, "missing", "none"))
		})
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitlock", "state.db")

	s, err := prefs.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("lastLockSnapshot", `[{"path":"/r/a.txt"}]`))
	require.NoError(t, s.Close())

	s, err = prefs.OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get("lastLockSnapshot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"path":"/r/a.txt"}]`, v)
}

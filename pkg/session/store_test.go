package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	st, err := NewFileStore(path)
	require.NoError(t, err)
	require.Equal(t, path, st.Path())

	got, err := st.Load()
	require.NoError(t, err)
	require.True(t, got.Empty())

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, st.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = st.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, st.Clear())
	require.NoError(t, st.Clear())

	got, err = st.Load()
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestFileStore_BrokenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = st.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestFileStore_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	st, err := NewFileStore("")
	require.NoError(t, err)
	require.Equal(t, "session.json", filepath.Base(st.Path()))
	require.Equal(t, "odyssey-auth", filepath.Base(filepath.Dir(st.Path())))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	require.NoError(t, st.Save(Tokens{AccessToken: "a"}))

	got, err := st.Load()
	require.NoError(t, err)
	require.Equal(t, "a", got.AccessToken)

	require.NoError(t, st.Clear())
	got, err = st.Load()
	require.NoError(t, err)
	require.True(t, got.Empty())
}

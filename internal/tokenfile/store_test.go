package tokenfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(filepath.Join(t.TempDir(), "verbi", "token.json"), nil)
}

func TestStore_EmptyReportsNoTokens(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.AccessToken()
	assert.False(t, ok)

	_, ok = s.RefreshToken()
	assert.False(t, ok)
	assert.False(t, s.Authorized())
}

func TestStore_SaveBothTokens(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("T1", "R1"))

	access, ok := s.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "T1", access)

	refresh, ok := s.RefreshToken()
	require.True(t, ok)
	assert.Equal(t, "R1", refresh)
}

func TestStore_SaveAccessOnlyKeepsRefreshToken(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("T1", "R1"))
	require.NoError(t, s.MergeMeta(map[string]string{MetaUsername: "anna"}))
	require.NoError(t, s.SetAuthorized(true))

	require.NoError(t, s.Save("T2", ""))

	access, _ := s.AccessToken()
	refresh, _ := s.RefreshToken()
	assert.Equal(t, "T2", access)
	assert.Equal(t, "R1", refresh)
	assert.True(t, s.Authorized())

	tf, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "anna", tf.Meta[MetaUsername])
}

func TestStore_SaveAccessOnlyNeverCreatesSession(t *testing.T) {
	s := newTestStore(t)

	require.ErrorIs(t, s.Save("T2", ""), ErrNoSession)
	assert.NoFileExists(t, s.Path())

	// A cleared session stays cleared.
	require.NoError(t, s.Save("T1", "R1"))
	require.NoError(t, s.Clear())
	require.NoError(t, s.SetAuthorized(false))

	require.ErrorIs(t, s.Save("T2", ""), ErrNoSession)

	_, ok := s.AccessToken()
	assert.False(t, ok)
	assert.False(t, s.Authorized())
	assert.NoFileExists(t, s.Path())
}

func TestStore_ClearRemovesEverything(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("T1", "R1"))
	require.NoError(t, s.SetAuthorized(true))
	require.NoError(t, s.Clear())

	_, ok := s.AccessToken()
	assert.False(t, ok)
	assert.False(t, s.Authorized())

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is harmless.
	assert.NoError(t, s.Clear())
}

func TestStore_SetAuthorizedWithoutSession(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.SetAuthorized(true), ErrNoSession)
	assert.NoError(t, s.SetAuthorized(false))
}

func TestStore_MergeMetaWithoutSession(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.MergeMeta(map[string]string{"k": "v"}), ErrNoSession)
}

func TestStore_CorruptFileTreatedAsLoggedOut(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), DirPerms))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{corrupt`), FilePerms))

	_, ok := s.AccessToken()
	assert.False(t, ok)
	assert.False(t, s.Authorized())
}

func TestStore_NewLoginDropsCachedProfile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("T1", "R1"))
	require.NoError(t, s.MergeMeta(map[string]string{MetaUsername: "anna", MetaEmail: "anna@example.com"}))

	require.NoError(t, s.Save("T9", "R9"))

	tf, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, tf.Meta)
	assert.Equal(t, "R9", tf.Token.RefreshToken)
}

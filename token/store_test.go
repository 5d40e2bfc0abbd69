package token

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SessionTierDoesNotSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyRefreshToken, "session-value", PersistenceSession))
	assert.Equal(t, "session-value", store.Get(KeyRefreshToken))
	assert.False(t, store.HasDurable(KeyRefreshToken))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, reopened.Get(KeyRefreshToken))
}

func TestStore_DurableTierSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyAccessToken, "abc123", PersistenceDurable))
	require.NoError(t, store.Set(KeyRefreshToken, "refresh456", PersistenceDurable))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "abc123", reopened.Get(KeyAccessToken))
	assert.Equal(t, "refresh456", reopened.Get(KeyRefreshToken))
	assert.True(t, reopened.HasDurable(KeyRefreshToken))
}

func TestStore_SetMovesKeyBetweenTiers(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyRefreshToken, "durable", PersistenceDurable))
	require.True(t, store.HasDurable(KeyRefreshToken))

	// Re-login without remember moves the refresh token out of the
	// durable tier.
	require.NoError(t, store.Set(KeyRefreshToken, "session-only", PersistenceSession))
	assert.False(t, store.HasDurable(KeyRefreshToken))
	assert.Equal(t, "session-only", store.Get(KeyRefreshToken))
}

func TestStore_DeleteClearsBothTiers(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyAccessToken, "durable", PersistenceDurable))
	require.NoError(t, store.Set(KeyProfile, "session", PersistenceSession))

	require.NoError(t, store.Delete(KeyAccessToken))
	require.NoError(t, store.Delete(KeyProfile))

	assert.Empty(t, store.Get(KeyAccessToken))
	assert.Empty(t, store.Get(KeyProfile))

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete(KeyAccessToken))
}

func TestStore_CorruptCredentialsFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0o600))

	store, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, store.Get(KeyAccessToken))
}

func TestStore_ClearWipesEverything(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyAccessToken, "a", PersistenceDurable))
	require.NoError(t, store.Set(KeyRefreshToken, "b", PersistenceSession))
	require.NoError(t, store.Clear())

	assert.Empty(t, store.Get(KeyAccessToken))
	assert.Empty(t, store.Get(KeyRefreshToken))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, reopened.Get(KeyAccessToken))
}

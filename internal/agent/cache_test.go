package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheRoundTrip(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "nested"))

	_, err := cache.Load()
	assert.ErrorIs(t, err, ErrNoCachedSession)

	stored := &CachedSession{
		UserID:       "u1",
		SessionToken: "tok",
		DeviceID:     "dev",
		ExpiresAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cache.Store(stored))
	assert.Equal(t, CacheKey+".json", filepath.Base(cache.Path()))

	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, stored.SessionToken, loaded.SessionToken)
	assert.Equal(t, stored.DeviceID, loaded.DeviceID)
	assert.True(t, stored.ExpiresAt.Equal(loaded.ExpiresAt))

	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear())
	_, err = cache.Load()
	assert.ErrorIs(t, err, ErrNoCachedSession)
}

func TestFileCacheCorrupt(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(dir)
	require.NoError(t, os.WriteFile(cache.Path(), []byte("{oops"), 0o600))

	_, err := cache.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCachedSession)
}

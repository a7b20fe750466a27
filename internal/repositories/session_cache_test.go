package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisSessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionCache(client), mr
}

func cachedSession(userID, token string, ttl time.Duration) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:           uuid.New(),
		UserID:       userID,
		SessionToken: token,
		DeviceID:     "device-a",
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
		IsActive:     true,
	}
}

// TestSessionCache_PutGet tests storing a session with a TTL and a user index
func TestSessionCache_PutGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	session := cachedSession("u1", "tok-1", time.Hour)
	require.NoError(t, cache.Put(ctx, session))

	got, err := cache.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "device-a", got.DeviceID)

	assert.True(t, mr.Exists(sessionKey("tok-1")))
	ttl := mr.TTL(sessionKey("tok-1"))
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	members, err := mr.Members(userSessionsKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, members)
}

// TestSessionCache_Expiration tests that cached entries disappear with their session
func TestSessionCache_Expiration(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-1", time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestSessionCache_PutExpired tests that an already expired session is not cached
func TestSessionCache_PutExpired(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-1", -time.Minute)))
	assert.False(t, mr.Exists(sessionKey("tok-1")))
}

// TestSessionCache_Evict tests removing one token
func TestSessionCache_Evict(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-1", time.Hour)))
	require.NoError(t, cache.Evict(ctx, "tok-1"))
	require.NoError(t, cache.Evict(ctx, "tok-1"))

	_, err := cache.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(userSessionsKey("u1")))
}

// TestSessionCache_EvictUnavailable tests only a missing entry counts as evicted
func TestSessionCache_EvictUnavailable(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-1", time.Hour)))
	mr.Close()

	err := cache.Evict(ctx, "tok-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// TestSessionCache_EvictUser tests removing every token of a user
func TestSessionCache_EvictUser(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-1", time.Hour)))
	require.NoError(t, cache.Put(ctx, cachedSession("u1", "tok-2", time.Hour)))
	require.NoError(t, cache.Put(ctx, cachedSession("u2", "tok-3", time.Hour)))

	require.NoError(t, cache.EvictUser(ctx, "u1"))

	for _, token := range []string{"tok-1", "tok-2"} {
		_, err := cache.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err := cache.Get(ctx, "tok-3")
	assert.NoError(t, err)

	require.NoError(t, cache.EvictUser(ctx, "nobody"))
}

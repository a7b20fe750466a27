package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"
const userSessionsKeyFormat = "user:%s:sessions"

type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(client *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{client: client}
}

// Put stores the session under its token until it expires and indexes the
// token under the owning user so a new login can evict it.
func (c *RedisSessionCache) Put(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	userKey := userSessionsKey(session.UserID)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.SessionToken), jsonData, ttl)
	pipe.SAdd(ctx, userKey, session.SessionToken)
	pipe.Expire(ctx, userKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Get(ctx context.Context, token string) (*models.Session, error) {
	jsonData, err := c.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (c *RedisSessionCache) Evict(ctx context.Context, token string) error {
	session, err := c.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userSessionsKey(session.UserID), token)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to evict session: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) EvictUser(ctx context.Context, userID string) error {
	userKey := userSessionsKey(userID)

	tokens, err := c.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, userKey)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to evict user sessions: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return sessionPrefix + token
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf(userSessionsKeyFormat, userID)
}

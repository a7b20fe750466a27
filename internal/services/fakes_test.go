package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/prudhvinik1/chatweet/internal/repositories"
)

// memorySessionRepository mirrors the Postgres repository's predicates.
type memorySessionRepository struct {
	mu         sync.Mutex
	sessions   []*models.Session
	history    *memoryHistoryRepository
	replaceErr error
	touchErr   error
	findErr    error
	// afterTouch runs once a touch succeeds, outside the lock.
	afterTouch func()
}

func newMemorySessionRepository(history *memoryHistoryRepository) *memorySessionRepository {
	return &memorySessionRepository{history: history}
}

func (r *memorySessionRepository) Replace(_ context.Context, session *models.Session, audit repositories.AuditFunc) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.replaceErr != nil {
		return 0, r.replaceErr
	}

	var displaced int64
	for _, existing := range r.sessions {
		if existing.UserID == session.UserID && existing.IsActive {
			existing.IsActive = false
			displaced++
		}
	}

	session.ID = uuid.New()
	session.IsActive = true
	session.LastActivity = session.CreatedAt
	stored := *session
	r.sessions = append(r.sessions, &stored)

	if audit != nil {
		for _, entry := range audit(displaced) {
			_ = r.history.Append(context.Background(), entry)
		}
	}
	return displaced, nil
}

func (r *memorySessionRepository) FindLive(_ context.Context, token, deviceID string, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, s := range r.sessions {
		if s.SessionToken == token && s.DeviceID == deviceID && s.IsLive(now) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memorySessionRepository) GetByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.SessionToken == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memorySessionRepository) TouchActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	if r.touchErr != nil {
		r.mu.Unlock()
		return r.touchErr
	}
	var touched bool
	for _, s := range r.sessions {
		if s.ID == id && s.IsLive(at) {
			s.LastActivity = at
			touched = true
		}
	}
	hook := r.afterTouch
	r.afterTouch = nil
	r.mu.Unlock()

	if !touched {
		return repositories.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (r *memorySessionRepository) Deactivate(_ context.Context, token, deviceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.SessionToken == token && s.DeviceID == deviceID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepository) ListLive(_ context.Context, userID string, now time.Time) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsLive(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *memorySessionRepository) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.IsActive && !s.ExpiresAt.After(now) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepository) activeFor(userID string) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

type memoryHistoryRepository struct {
	mu        sync.Mutex
	entries   []*models.LoginHistoryEntry
	appendErr error
}

func (r *memoryHistoryRepository) Append(_ context.Context, entry *models.LoginHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.appendErr != nil {
		return r.appendErr
	}
	entry.ID = uuid.New()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memoryHistoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*models.LoginHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.LoginHistoryEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memoryHistoryRepository) actions(userID string) []models.LoginAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.LoginAction
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memorySessionCache struct {
	mu      sync.Mutex
	byToken map[string]*models.Session
	getErr  error
}

func newMemorySessionCache() *memorySessionCache {
	return &memorySessionCache{byToken: make(map[string]*models.Session)}
}

func (c *memorySessionCache) Put(_ context.Context, session *models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *session
	c.byToken[session.SessionToken] = &copied
	return nil
}

func (c *memorySessionCache) Get(_ context.Context, token string) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.byToken[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (c *memorySessionCache) Evict(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byToken, token)
	return nil
}

func (c *memorySessionCache) EvictUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, s := range c.byToken {
		if s.UserID == userID {
			delete(c.byToken, token)
		}
	}
	return nil
}

var errStoreDown = errors.New("connection refused")

package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/chatweet/internal/models"
)

// AuditFunc builds the history entries written together with a session
// replacement. displaced is the number of sessions that were deactivated.
type AuditFunc func(displaced int64) []*models.LoginHistoryEntry

type SessionRepository interface {
	// Replace deactivates every active session of session.UserID and inserts
	// session as the only active one, in a single transaction. Entries returned
	// by audit are appended inside the same transaction.
	Replace(ctx context.Context, session *models.Session, audit AuditFunc) (displaced int64, err error)
	FindLive(ctx context.Context, token, deviceID string, now time.Time) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	// TouchActivity returns ErrNotFound unless the session is still live at at.
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, token, deviceID string) (int64, error)
	ListLive(ctx context.Context, userID string, now time.Time) ([]*models.Session, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type LoginHistoryRepository interface {
	Append(ctx context.Context, entry *models.LoginHistoryEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.LoginHistoryEntry, error)
}

// SessionCache is a read-through accelerator for validation. It is never the
// source of truth; every method may be skipped without affecting correctness.
type SessionCache interface {
	Put(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Evict(ctx context.Context, token string) error
	EvictUser(ctx context.Context, userID string) error
}

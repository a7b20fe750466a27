package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prudhvinik1/chatweet/internal/metrics"
	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/prudhvinik1/chatweet/internal/repositories"
	"go.uber.org/zap"
)

const (
	DefaultSessionTTL   = 24 * time.Hour
	DefaultStoreTimeout = 5 * time.Second
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrStore        = errors.New("session store unavailable")
)

// InvalidReason says why a validation failed. Clients treat every reason the
// same way (log out locally); it exists for diagnostics and UX copy.
type InvalidReason string

const (
	ReasonNotFound       InvalidReason = "not_found"
	ReasonDeviceMismatch InvalidReason = "device_mismatch"
	ReasonInactive       InvalidReason = "inactive"
	ReasonExpired        InvalidReason = "expired"
	ReasonUnavailable    InvalidReason = "unavailable"
)

type SessionConfig struct {
	TTL          time.Duration
	StoreTimeout time.Duration
}

// SessionService owns the one-active-session-per-user rule. It holds no
// per-request state; all coordination goes through the session repository.
type SessionService struct {
	sessions     repositories.SessionRepository
	history      repositories.LoginHistoryRepository
	cache        repositories.SessionCache
	ttl          time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	newToken     func() string
	log          *zap.Logger
}

type CreateSessionRequest struct {
	UserID    string
	DeviceID  string
	UserAgent string
	IPAddress string
}

type CreateSessionResponse struct {
	SessionToken string
	ExpiresAt    time.Time
	Displaced    int64
	Session      *models.Session
}

type LogoutRequest struct {
	UserID       string
	DeviceID     string
	SessionToken string
	IPAddress    string
}

type ValidationResult struct {
	Valid   bool
	Session *models.Session
	Reason  InvalidReason
}

// NewSessionService wires the service. cache may be nil.
func NewSessionService(
	sessions repositories.SessionRepository,
	history repositories.LoginHistoryRepository,
	cache repositories.SessionCache,
	cfg SessionConfig,
	log *zap.Logger,
) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SessionService{
		sessions:     sessions,
		history:      history,
		cache:        cache,
		ttl:          cfg.TTL,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
		newToken:     NewSessionToken,
		log:          log,
	}
}

// CreateSession signs the user in on deviceID and logs every other device out.
// The old sessions are only deactivated if the new one is stored; a failure
// leaves the previous session usable.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (resp *CreateSessionResponse, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("create_session", start, err) }()

	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.DeviceID) == "" {
		return nil, fmt.Errorf("%w: userId and deviceId are required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.now()
	session := &models.Session{
		UserID:       req.UserID,
		SessionToken: s.newToken(),
		DeviceID:     req.DeviceID,
		DeviceLabel:  DeviceLabel(req.UserAgent),
		UserAgent:    req.UserAgent,
		IPAddress:    req.IPAddress,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	displaced, err := s.sessions.Replace(ctx, session, func(displaced int64) []*models.LoginHistoryEntry {
		entries := make([]*models.LoginHistoryEntry, 0, 2)
		// A first login displaces nothing, so it gets no forced_logout row.
		if displaced > 0 {
			entries = append(entries, s.historyEntry(req.UserID, req.DeviceID, req.IPAddress, models.ActionForcedLogout))
		}
		return append(entries, s.historyEntry(req.UserID, req.DeviceID, req.IPAddress, models.ActionLogin))
	})
	if err != nil {
		s.log.Error("create session failed", zap.String("user_id", req.UserID), zap.Error(err))
		if errors.Is(err, repositories.ErrActiveSessionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	metrics.ForcedLogoutsTotal.Add(float64(displaced))

	if s.cache != nil {
		if err := s.cache.EvictUser(ctx, req.UserID); err != nil {
			s.cacheFailure("evict_user", err)
		}
		if err := s.cache.Put(ctx, session); err != nil {
			s.cacheFailure("put", err)
		}
	}

	s.log.Info("session created",
		zap.String("user_id", req.UserID),
		zap.String("device_id", req.DeviceID),
		zap.Int64("displaced", displaced),
		zap.Time("expires_at", session.ExpiresAt),
	)

	return &CreateSessionResponse{
		SessionToken: session.SessionToken,
		ExpiresAt:    session.ExpiresAt,
		Displaced:    displaced,
		Session:      session,
	}, nil
}

// ValidateSession reports whether token is live on deviceID. It never returns
// an error: store failures and timeouts count as invalid.
func (s *SessionService) ValidateSession(ctx context.Context, token, deviceID string) *ValidationResult {
	start := time.Now()
	result := s.validate(ctx, token, deviceID)

	var err error
	if result.Reason == ReasonUnavailable {
		err = ErrStore
	}
	metrics.ObserveOperation("validate_session", start, err)
	if !result.Valid {
		metrics.ValidationFailuresTotal.WithLabelValues(string(result.Reason)).Inc()
	}
	return result
}

func (s *SessionService) validate(ctx context.Context, token, deviceID string) *ValidationResult {
	if token == "" || deviceID == "" {
		return &ValidationResult{Reason: ReasonNotFound}
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.now()

	var session *models.Session
	fromCache := false
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, token)
		switch {
		case err == nil && cached.DeviceID == deviceID && cached.IsLive(now):
			session = cached
			fromCache = true
			metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
		case err == nil || errors.Is(err, repositories.ErrNotFound):
			metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		default:
			s.cacheFailure("get", err)
		}
	}

	if session == nil {
		found, err := s.sessions.FindLive(ctx, token, deviceID, now)
		if errors.Is(err, repositories.ErrNotFound) {
			return &ValidationResult{Reason: s.classify(ctx, token, deviceID, now)}
		}
		if err != nil {
			s.log.Error("validate session failed", zap.String("device_id", deviceID), zap.Error(err))
			return &ValidationResult{Reason: ReasonUnavailable}
		}
		session = found
	}

	// The touch only matches a live row, so it also confirms a cached or
	// just-read session was not ended by a concurrent logout or login.
	touchErr := s.sessions.TouchActivity(ctx, session.ID, now)
	switch {
	case errors.Is(touchErr, repositories.ErrNotFound):
		if s.cache != nil {
			if err := s.cache.Evict(ctx, token); err != nil {
				s.cacheFailure("evict", err)
			}
		}
		return &ValidationResult{Reason: s.classify(ctx, token, deviceID, now)}
	case touchErr != nil:
		s.log.Warn("update last activity failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(touchErr),
		)
	default:
		session.LastActivity = now
	}

	if s.cache != nil && !fromCache && touchErr == nil {
		if err := s.cache.Put(ctx, session); err != nil {
			s.cacheFailure("put", err)
		}
	}

	return &ValidationResult{Valid: true, Session: session}
}

// classify looks the token up without the liveness filter to name the reason.
func (s *SessionService) classify(ctx context.Context, token, deviceID string, now time.Time) InvalidReason {
	session, err := s.sessions.GetByToken(ctx, token)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return ReasonNotFound
	case err != nil:
		return ReasonUnavailable
	case session.DeviceID != deviceID:
		return ReasonDeviceMismatch
	case !session.IsActive:
		return ReasonInactive
	case !session.ExpiresAt.After(now):
		return ReasonExpired
	}
	// Became live between the two reads; still report the original miss.
	return ReasonNotFound
}

// Logout ends the session matching token and deviceID. Ending an unknown or
// already ended session is not an error. The audit entry is best-effort.
func (s *SessionService) Logout(ctx context.Context, req LogoutRequest) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("logout", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ended, err := s.sessions.Deactivate(ctx, req.SessionToken, req.DeviceID)
	if err != nil {
		s.log.Error("logout failed", zap.String("user_id", req.UserID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	if s.cache != nil {
		if err := s.cache.Evict(ctx, req.SessionToken); err != nil {
			s.cacheFailure("evict", err)
		}
	}

	entry := s.historyEntry(req.UserID, req.DeviceID, req.IPAddress, models.ActionLogout)
	if err := s.history.Append(ctx, entry); err != nil {
		s.log.Warn("append logout history failed", zap.String("user_id", req.UserID), zap.Error(err))
	}

	s.log.Info("session ended",
		zap.String("user_id", req.UserID),
		zap.String("device_id", req.DeviceID),
		zap.Int64("ended", ended),
	)
	return nil
}

// GetActiveSessions lists the user's live sessions, most recently active first.
func (s *SessionService) GetActiveSessions(ctx context.Context, userID string) (sessions []*models.Session, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("get_active_sessions", start, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	sessions, err = s.sessions.ListLive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	return sessions, nil
}

// CleanupExpired deactivates every active session past its expiry and
// returns how many were swept. It writes no history.
func (s *SessionService) CleanupExpired(ctx context.Context) (swept int64, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("cleanup_expired", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	swept, err = s.sessions.DeactivateExpired(ctx, s.now())
	if err != nil {
		s.log.Error("cleanup expired sessions failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	metrics.ExpiredSessionsSweptTotal.Add(float64(swept))
	if swept > 0 {
		s.log.Info("expired sessions cleaned up", zap.Int64("swept", swept))
	}
	return swept, nil
}

func (s *SessionService) LoginHistory(ctx context.Context, userID string, limit int) (entries []*models.LoginHistoryEntry, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("get_login_history", start, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	entries, err = s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if entries == nil {
		entries = []*models.LoginHistoryEntry{}
	}
	return entries, nil
}

func (s *SessionService) historyEntry(userID, deviceID, ipAddress string, action models.LoginAction) *models.LoginHistoryEntry {
	return &models.LoginHistoryEntry{
		UserID:    userID,
		DeviceID:  deviceID,
		IPAddress: ipAddress,
		Action:    action,
		CreatedAt: s.now(),
	}
}

func (s *SessionService) cacheFailure(operation string, err error) {
	metrics.CacheOperationsTotal.WithLabelValues(operation, "error").Inc()
	s.log.Warn("session cache operation failed", zap.String("operation", operation), zap.Error(err))
}

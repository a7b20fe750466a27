package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/prudhvinik1/chatweet/internal/models"
	"go.uber.org/zap"
)

// State is the agent's belief about whether this device may act as the user.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StatePending         State = "pending"
	StateActive          State = "active"
)

type Authority interface {
	CreateSession(ctx context.Context, userID, deviceID, userAgent string) (*CreateSessionResult, error)
	ValidateSession(ctx context.Context, sessionToken, deviceID string) (*ValidateSessionResult, error)
	Logout(ctx context.Context, userID, sessionToken, deviceID string) error
	ActiveSessions(ctx context.Context, userID string) ([]*models.Session, error)
}

// Agent is the one place the rest of a client asks "am I signed in here".
// The identity provider only issues credentials; its own session state is
// never consulted.
type Agent struct {
	authority Authority
	cache     Cache
	env       func() Environment
	log       *zap.Logger

	mu         sync.Mutex
	state      State
	session    *CachedSession
	generation uint64
	inflight   chan struct{}
	lastErr    error
}

func New(authority Authority, cache Cache, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		authority: authority,
		cache:     cache,
		env:       LocalEnvironment,
		log:       log,
		state:     StateUnauthenticated,
	}
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) Authenticated() bool {
	return a.State() == StateActive
}

// Session returns the current session, or nil unless the agent is active.
func (a *Agent) Session() *CachedSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive || a.session == nil {
		return nil
	}
	copied := *a.session
	return &copied
}

// SignedIn reacts to a completed identity-provider sign-in. It starts
// create_session in the background and returns at once; until it finishes
// the agent is pending.
func (a *Agent) SignedIn(ctx context.Context, userID string) {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	done := make(chan struct{})
	a.inflight = done
	a.lastErr = nil
	a.state = StatePending
	a.session = nil
	a.mu.Unlock()

	go func() {
		defer close(done)
		session, err := a.createSession(ctx, userID)

		a.mu.Lock()
		// A later sign-in or sign-out owns the state now, so a session
		// created after it must not outlive it on the server.
		if gen != a.generation {
			a.mu.Unlock()
			if err == nil {
				a.abandon(context.WithoutCancel(ctx), session)
			}
			return
		}
		defer a.mu.Unlock()
		a.lastErr = err
		if err != nil {
			a.state = StateUnauthenticated
			return
		}
		if err := a.cache.Store(session); err != nil {
			a.log.Warn("store session cache failed", zap.Error(err))
		}
		a.session = session
		a.state = StateActive
	}()
}

func (a *Agent) createSession(ctx context.Context, userID string) (*CachedSession, error) {
	if userID == "" {
		return nil, errors.New("sign in: user id is required")
	}

	env := a.env()
	deviceID := Fingerprint(env)

	result, err := a.authority.CreateSession(ctx, userID, deviceID, env.UserAgent)
	if err != nil {
		a.log.Warn("create session failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &CachedSession{
		UserID:       userID,
		SessionToken: result.SessionToken,
		DeviceID:     deviceID,
		ExpiresAt:    result.ExpiresAt,
	}, nil
}

func (a *Agent) abandon(ctx context.Context, session *CachedSession) {
	err := a.authority.Logout(ctx, session.UserID, session.SessionToken, session.DeviceID)
	if err != nil {
		a.log.Warn("logout of superseded session failed",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}
}

// Wait blocks until the in-flight sign-in, if any, completes and returns its error.
func (a *Agent) Wait(ctx context.Context) error {
	a.mu.Lock()
	done := a.inflight
	a.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Load restores the cached session for userID on application start and
// checks it with the session manager. Anything short of a positive answer
// leaves the agent unauthenticated with an empty cache.
func (a *Agent) Load(ctx context.Context, userID string) State {
	cached, err := a.cache.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCachedSession) {
			a.log.Warn("read session cache failed", zap.Error(err))
			a.clearCache()
		}
		return a.settle(nil)
	}

	if userID == "" || (cached.UserID != "" && cached.UserID != userID) {
		a.clearCache()
		return a.settle(nil)
	}

	result, err := a.authority.ValidateSession(ctx, cached.SessionToken, cached.DeviceID)
	if err != nil || !result.Valid {
		if err != nil {
			a.log.Warn("validate session failed", zap.Error(err))
		} else {
			a.log.Info("cached session no longer valid", zap.String("reason", result.Reason))
		}
		a.clearCache()
		return a.settle(nil)
	}

	if cached.UserID == "" {
		cached.UserID = userID
	}
	return a.settle(cached)
}

// SignOut ends the session on the server, then signs out of the identity
// provider, then clears the local cache whatever happened before.
func (a *Agent) SignOut(ctx context.Context, userID string, idpSignOut func(context.Context) error) error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()

	if session == nil {
		if cached, err := a.cache.Load(); err == nil {
			session = cached
		}
	}

	if session != nil {
		if err := a.authority.Logout(ctx, userID, session.SessionToken, session.DeviceID); err != nil {
			a.log.Warn("logout failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	var idpErr error
	if idpSignOut != nil {
		idpErr = idpSignOut(ctx)
	}

	a.clearCache()
	a.settle(nil)
	return idpErr
}

// ActiveSessions lists the user's live sessions, or none if the call fails.
func (a *Agent) ActiveSessions(ctx context.Context, userID string) []*models.Session {
	sessions, err := a.authority.ActiveSessions(ctx, userID)
	if err != nil {
		a.log.Warn("get active sessions failed", zap.String("user_id", userID), zap.Error(err))
		return []*models.Session{}
	}
	if sessions == nil {
		return []*models.Session{}
	}
	return sessions
}

func (a *Agent) settle(session *CachedSession) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.session = session
	if session == nil {
		a.state = StateUnauthenticated
	} else {
		a.state = StateActive
	}
	return a.state
}

func (a *Agent) clearCache() {
	if err := a.cache.Clear(); err != nil {
		a.log.Warn("clear session cache failed", zap.Error(err))
	}
}

package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prudhvinik1/chatweet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthority struct {
	mu sync.Mutex

	release   chan struct{}
	createErr error
	created   []string

	valid       bool
	validateErr error

	logoutErr error
	logouts   []string

	sessions    []*models.Session
	sessionsErr error
}

func (f *fakeAuthority) CreateSession(ctx context.Context, userID, deviceID, userAgent string) (*CreateSessionResult, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, deviceID)
	return &CreateSessionResult{
		Success:      true,
		SessionToken: "tok-" + deviceID,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeAuthority) ValidateSession(_ context.Context, sessionToken, deviceID string) (*ValidateSessionResult, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	if !f.valid {
		return &ValidateSessionResult{Valid: false, Reason: "inactive"}, nil
	}
	return &ValidateSessionResult{Valid: true}, nil
}

func (f *fakeAuthority) Logout(_ context.Context, userID, sessionToken, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, sessionToken)
	return f.logoutErr
}

func (f *fakeAuthority) ActiveSessions(_ context.Context, userID string) ([]*models.Session, error) {
	return f.sessions, f.sessionsErr
}

func newTestAgent(t *testing.T, authority *fakeAuthority) (*Agent, *FileCache) {
	t.Helper()
	cache := NewFileCache(t.TempDir())
	agent := New(authority, cache, nil)
	agent.env = func() Environment {
		return Environment{UserAgent: "test-agent", ScreenWidth: 800, ScreenHeight: 600, Now: time.Now()}
	}
	return agent, cache
}

func TestSignedInIsPendingUntilCreateCompletes(t *testing.T) {
	authority := &fakeAuthority{release: make(chan struct{})}
	agent, cache := newTestAgent(t, authority)

	agent.SignedIn(context.Background(), "u1")
	assert.Equal(t, StatePending, agent.State())
	assert.False(t, agent.Authenticated())
	assert.Nil(t, agent.Session())

	close(authority.release)
	require.NoError(t, agent.Wait(context.Background()))

	assert.Equal(t, StateActive, agent.State())
	session := agent.Session()
	require.NotNil(t, session)
	assert.Equal(t, "u1", session.UserID)

	cached, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, session.SessionToken, cached.SessionToken)
	assert.Equal(t, session.DeviceID, cached.DeviceID)
}

func TestSignedInFailureFallsBackToUnauthenticated(t *testing.T) {
	authority := &fakeAuthority{createErr: errors.New("unreachable")}
	agent, cache := newTestAgent(t, authority)

	agent.SignedIn(context.Background(), "u1")
	assert.Error(t, agent.Wait(context.Background()))

	assert.Equal(t, StateUnauthenticated, agent.State())
	_, err := cache.Load()
	assert.ErrorIs(t, err, ErrNoCachedSession)
}

func TestSignOutDuringPendingSignInWins(t *testing.T) {
	authority := &fakeAuthority{release: make(chan struct{})}
	agent, cache := newTestAgent(t, authority)

	agent.SignedIn(context.Background(), "u1")
	require.NoError(t, agent.SignOut(context.Background(), "u1", nil))

	close(authority.release)
	require.NoError(t, agent.Wait(context.Background()))

	assert.Equal(t, StateUnauthenticated, agent.State())
	_, err := cache.Load()
	assert.ErrorIs(t, err, ErrNoCachedSession)

	authority.mu.Lock()
	defer authority.mu.Unlock()
	require.Len(t, authority.created, 1)
	assert.Equal(t, []string{"tok-" + authority.created[0]}, authority.logouts)
}

func TestSignedInSupersededEndsEarlierSession(t *testing.T) {
	authority := &fakeAuthority{release: make(chan struct{})}
	agent, _ := newTestAgent(t, authority)

	agent.SignedIn(context.Background(), "u1")
	first := agent.inflight
	agent.SignedIn(context.Background(), "u1")

	close(authority.release)
	<-first
	require.NoError(t, agent.Wait(context.Background()))

	assert.Equal(t, StateActive, agent.State())
	authority.mu.Lock()
	defer authority.mu.Unlock()
	assert.Len(t, authority.created, 2)
	assert.Len(t, authority.logouts, 1)
}

func TestLoad(t *testing.T) {
	stored := &CachedSession{UserID: "u1", SessionToken: "tok", DeviceID: "dev", ExpiresAt: time.Now().Add(time.Hour)}

	t.Run("valid session", func(t *testing.T) {
		agent, cache := newTestAgent(t, &fakeAuthority{valid: true})
		require.NoError(t, cache.Store(stored))

		assert.Equal(t, StateActive, agent.Load(context.Background(), "u1"))
		assert.Equal(t, "tok", agent.Session().SessionToken)
	})

	t.Run("invalid session clears cache", func(t *testing.T) {
		agent, cache := newTestAgent(t, &fakeAuthority{valid: false})
		require.NoError(t, cache.Store(stored))

		assert.Equal(t, StateUnauthenticated, agent.Load(context.Background(), "u1"))
		_, err := cache.Load()
		assert.ErrorIs(t, err, ErrNoCachedSession)
	})

	t.Run("service error clears cache", func(t *testing.T) {
		agent, cache := newTestAgent(t, &fakeAuthority{validateErr: errors.New("timeout")})
		require.NoError(t, cache.Store(stored))

		assert.Equal(t, StateUnauthenticated, agent.Load(context.Background(), "u1"))
		_, err := cache.Load()
		assert.ErrorIs(t, err, ErrNoCachedSession)
	})

	t.Run("other user", func(t *testing.T) {
		agent, cache := newTestAgent(t, &fakeAuthority{valid: true})
		require.NoError(t, cache.Store(stored))

		assert.Equal(t, StateUnauthenticated, agent.Load(context.Background(), "u2"))
		_, err := cache.Load()
		assert.ErrorIs(t, err, ErrNoCachedSession)
	})

	t.Run("empty cache", func(t *testing.T) {
		agent, _ := newTestAgent(t, &fakeAuthority{valid: true})
		assert.Equal(t, StateUnauthenticated, agent.Load(context.Background(), "u1"))
	})
}

func TestSignOutOrderAndUnconditionalClear(t *testing.T) {
	authority := &fakeAuthority{valid: true, logoutErr: errors.New("network down")}
	agent, cache := newTestAgent(t, authority)
	require.NoError(t, cache.Store(&CachedSession{UserID: "u1", SessionToken: "tok", DeviceID: "dev"}))
	require.Equal(t, StateActive, agent.Load(context.Background(), "u1"))

	var logoutsBeforeIdp int
	idpErr := errors.New("idp down")
	err := agent.SignOut(context.Background(), "u1", func(context.Context) error {
		authority.mu.Lock()
		logoutsBeforeIdp = len(authority.logouts)
		authority.mu.Unlock()
		return idpErr
	})

	assert.ErrorIs(t, err, idpErr)
	assert.Equal(t, 1, logoutsBeforeIdp)
	assert.Equal(t, StateUnauthenticated, agent.State())
	_, err = cache.Load()
	assert.ErrorIs(t, err, ErrNoCachedSession)
}

func TestActiveSessionsSwallowsErrors(t *testing.T) {
	agent, _ := newTestAgent(t, &fakeAuthority{sessionsErr: errors.New("boom")})
	sessions := agent.ActiveSessions(context.Background(), "u1")
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

// Package session owns the logged-in identity of the daemon: it restores
// the stored session at startup, logs in and out, and keeps the realtime
// channel and the chat hub in step with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/domain"
	"go.uber.org/zap"
)

// Auth is the REST surface of authentication.
type Auth interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Signup(ctx context.Context, req backend.SignupRequest) (*domain.Session, error)
	Me(ctx context.Context) (*domain.User, error)
}

// Credentials persists the session across restarts.
type Credentials interface {
	Session(ctx context.Context) (*domain.Session, error)
	SaveSession(ctx context.Context, sess *domain.Session) error
	SaveUser(ctx context.Context, u domain.User) error
	ClearSession(ctx context.Context) error
}

// Channel is the realtime connection tied to the session.
type Channel interface {
	Connect(ctx context.Context)
	Disconnect()
}

// Views holds per-user view state that must follow the identity.
type Views interface {
	SetSelf(u domain.User)
	Reset()
}

// Manager is safe for concurrent use.
type Manager struct {
	auth   Auth
	creds  Credentials
	ch     Channel
	views  Views
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	current *domain.Session
}

// NewManager creates a logged-out manager. Call Restore to pick up a stored
// session.
func NewManager(auth Auth, creds Credentials, ch Channel, views Views, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{auth: auth, creds: creds, ch: ch, views: views, bus: b, logger: logger}
}

// Current returns a copy of the active session, or nil when logged out.
func (m *Manager) Current() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// Restore resumes the stored session, if any: it refreshes the cached
// profile and connects the realtime channel. A token the server rejects is
// cleared; an unreachable server keeps the cached profile.
func (m *Manager) Restore(ctx context.Context) (*domain.Session, error) {
	sess, err := m.creds.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored session: %w", err)
	}
	if sess == nil {
		m.logger.Info("no stored session, login required")
		return nil, nil
	}

	m.setCurrent(sess)
	me, err := m.auth.Me(ctx)
	switch {
	case errors.Is(err, backend.ErrUnauthenticated):
		m.logger.Info("stored token rejected by server")
		if lerr := m.Logout(ctx); lerr != nil {
			return nil, lerr
		}
		return nil, nil
	case err != nil:
		m.logger.Warn("refresh profile failed, using cached user", zap.Error(err))
	case me != nil && me.ID != "":
		sess.User = *me
		if err := m.creds.SaveUser(ctx, *me); err != nil {
			m.logger.Warn("cache refreshed profile", zap.Error(err))
		}
		m.setCurrent(sess)
	}

	m.activate(ctx, sess, false)
	return m.Current(), nil
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, sess)
}

// Signup creates an account and logs into it.
func (m *Manager) Signup(ctx context.Context, req backend.SignupRequest) (*domain.Session, error) {
	sess, err := m.auth.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, sess)
}

// Logout drops the realtime connection, every view-model and the stored
// credentials. Logging out while logged out is not an error.
func (m *Manager) Logout(ctx context.Context) error {
	m.ch.Disconnect()
	m.views.Reset()
	if err := m.creds.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	m.mu.Lock()
	was := m.current
	m.current = nil
	m.mu.Unlock()

	var user domain.User
	if was != nil {
		user = was.User
	}
	m.views.SetSelf(domain.User{})
	m.bus.Emit(bus.KindSessionLoggedOut, user)
	m.logger.Info("logged out", zap.String("user", user.ID))
	return nil
}

func (m *Manager) establish(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if prev := m.Current(); prev != nil && prev.User.ID != sess.User.ID {
		m.ch.Disconnect()
	}
	if err := m.creds.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}
	m.setCurrent(sess)
	m.activate(ctx, sess, true)
	return m.Current(), nil
}

func (m *Manager) activate(ctx context.Context, sess *domain.Session, fresh bool) {
	m.views.SetSelf(sess.User)
	m.ch.Connect(ctx)
	if fresh {
		m.bus.Emit(bus.KindSessionLoggedIn, sess.User)
	}
	m.logger.Info("session active", zap.String("user", sess.User.ID), zap.Bool("restored", !fresh))
}

func (m *Manager) setCurrent(sess *domain.Session) {
	cp := *sess
	m.mu.Lock()
	m.current = &cp
	m.mu.Unlock()
}

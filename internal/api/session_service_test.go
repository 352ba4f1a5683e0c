package api

import (
	"context"
	"errors"
	"testing"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/session"
	"github.com/nightvibe/nightvibe/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuth struct{ sess *domain.Session }

func (a stubAuth) Login(context.Context, string, string) (*domain.Session, error) { return a.sess, nil }
func (a stubAuth) Signup(context.Context, backend.SignupRequest) (*domain.Session, error) {
	return a.sess, nil
}
func (a stubAuth) Me(context.Context) (*domain.User, error) { return &a.sess.User, nil }

type memCreds struct{ sess *domain.Session }

func (c *memCreds) Session(context.Context) (*domain.Session, error) { return c.sess, nil }
func (c *memCreds) SaveSession(_ context.Context, s *domain.Session) error {
	c.sess = s
	return nil
}
func (c *memCreds) SaveUser(context.Context, domain.User) error { return nil }
func (c *memCreds) ClearSession(context.Context) error {
	c.sess = nil
	return nil
}

type idleChannel struct{}

func (idleChannel) Connect(context.Context) {}
func (idleChannel) Disconnect()             {}
func (idleChannel) State() status.State     { return status.Disconnected }
func (idleChannel) SocketID() string        { return "" }

type noViews struct{}

func (noViews) SetSelf(domain.User) {}
func (noViews) Reset()              {}

// brokenPrefs fails every write.
type brokenPrefs struct{}

func (brokenPrefs) Onboarded(context.Context) (bool, error) { return false, nil }
func (brokenPrefs) SetOnboarded(context.Context, bool) error {
	return errors.New("disk full")
}
func (brokenPrefs) AccountType(context.Context) (domain.AccountType, error) { return "", nil }
func (brokenPrefs) SetAccountType(context.Context, domain.AccountType) error {
	return errors.New("disk full")
}

func TestLoginLogsFailedAccountTypeSave(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sess := &domain.Session{AuthToken: "tok", User: domain.User{ID: "me", AccountType: domain.AccountVendor}}
	sessions := session.NewManager(stubAuth{sess: sess}, &memCreds{}, idleChannel{}, noViews{}, bus.New(), nil)
	svc := NewSessionService("test", sessions, brokenPrefs{}, idleChannel{}, nil, zap.New(core))

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "me", resp.User.ID)

	entries := logs.FilterMessage("save account type").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "disk full", entries[0].ContextMap()["error"])
	assert.Equal(t, "vendor", entries[0].ContextMap()["account_type"])
}

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/client"
	"github.com/nightvibe/nightvibe/internal/config"
	"github.com/nightvibe/nightvibe/internal/lock"
	"github.com/nightvibe/nightvibe/internal/profile"
	"github.com/nightvibe/nightvibe/internal/session"
	"github.com/nightvibe/nightvibe/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// tempHome points the profile base directory at a short /tmp path so unix
// socket paths stay under the platform limit.
func tempHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "nv-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(profile.HomeEnv, dir)
	return dir
}

func testConfig(apiURL string) *config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = apiURL
	cfg.RealtimeURL = "ws://127.0.0.1:1/socket.io/"
	cfg.MetricsAddr = ""
	cfg.OTLPEndpoint = ""
	cfg.LogLevel = "error"
	return cfg
}

func TestFxModuleWiring(t *testing.T) {
	tempHome(t)
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()

	app := fx.New(
		Module(Params{Profile: "fxtest", Config: testConfig(backend.URL)}),
		fx.NopLogger,
	)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))

	socketPath := profile.SocketPath("fxtest")
	_, err := os.Stat(socketPath)
	require.NoError(t, err, "socket not created")

	c, err := client.New(socketPath)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	var st *api.StatusResponse
	require.Eventually(t, func() bool {
		st, err = c.Status(ctx)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "fxtest", st.Profile)
	assert.False(t, st.LoggedIn)

	// Chat operations need a session.
	_, err = c.ListChats(ctx, "")
	assert.Error(t, err)

	require.NoError(t, app.Stop(ctx))
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be removed on stop")

	// The lock is released, so a second daemon can take the profile.
	lk, err := lock.Acquire(profile.Dir("fxtest"))
	require.NoError(t, err)
	_ = lk.Release()
}

func TestSecondDaemonIsRefused(t *testing.T) {
	tempHome(t)
	lk, err := lock.Acquire(profile.Dir("busy"))
	require.NoError(t, err)
	defer func() { _ = lk.Release() }()

	app := fx.New(
		Module(Params{Profile: "busy", Config: testConfig("http://127.0.0.1:1")}),
		fx.NopLogger,
	)
	err = app.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile locked by PID")
}

func TestNewServerUsesSocketOverride(t *testing.T) {
	dir := tempHome(t)
	socketPath := filepath.Join(dir, "d.sock")

	srv, err := NewServer(Params{Profile: "override", SocketPath: socketPath}, zap.NewNop(), nil, nil, nil, nil)
	require.NoError(t, err)

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	srv.Stop(context.Background())
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b := bus.New()
	m := status.NewMachine(b)
	sessions := session.NewManager(nil, nil, nil, nil, b, zap.NewNop())

	r := newRouter(m, sessions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, string(status.Disconnected), body["realtime"])
	assert.Equal(t, false, body["loggedIn"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nightvibe_")
}

func TestHTTPServerDisabledWithoutAddr(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsAddr = ""
	s := NewHTTPServer(cfg, status.NewMachine(nil), session.NewManager(nil, nil, nil, nil, nil, zap.NewNop()), zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop(context.Background())
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nightvibe/nightvibe/internal/config"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"github.com/nightvibe/nightvibe/internal/session"
	"github.com/nightvibe/nightvibe/internal/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HTTPServer serves /metrics and /healthz on the configured metrics
// address. It is disabled when the address is empty.
type HTTPServer struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewHTTPServer builds the metrics server.
func NewHTTPServer(cfg *config.Config, m *status.Machine, sessions *session.Manager, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		addr: cfg.MetricsAddr,
		srv: &http.Server{
			Handler:           newRouter(m, sessions),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func newRouter(m *status.Machine, sessions *session.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.HTTPMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"realtime": m.Current(),
			"loggedIn": sessions.Current() != nil,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start listens in the background. A bad address fails startup.
func (s *HTTPServer) Start() error {
	if s.addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", s.addr, err)
	}
	s.logger.Info("metrics server starting", zap.String("addr", lis.Addr().String()))
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) {
	if s.addr == "" {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

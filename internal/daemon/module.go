package daemon

import (
	"context"

	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/chat"
	"github.com/nightvibe/nightvibe/internal/config"
	"github.com/nightvibe/nightvibe/internal/credstore"
	"github.com/nightvibe/nightvibe/internal/lock"
	"github.com/nightvibe/nightvibe/internal/logging"
	"github.com/nightvibe/nightvibe/internal/payment"
	"github.com/nightvibe/nightvibe/internal/profile"
	"github.com/nightvibe/nightvibe/internal/realtime"
	"github.com/nightvibe/nightvibe/internal/session"
	"github.com/nightvibe/nightvibe/internal/status"
	"github.com/nightvibe/nightvibe/internal/store"
	intsync "github.com/nightvibe/nightvibe/internal/sync"
	"github.com/nightvibe/nightvibe/internal/telemetry"
	"github.com/nightvibe/nightvibe/internal/tickets"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string         // optional override for testing; empty = use default
	Config     *config.Config // optional; nil = load ~/.nightvibe/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCredStore,
			provideTelemetry,
			provideBackend,
			provideRealtime,
			provideHub,
			provideSessionManager,
			provideTickets,
			providePayment,
			provideSyncEngine,
			provideSessionService,
			provideChatService,
			providePaymentService,
			provideDiscoverService,
			NewServer,
			NewHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	if p.Config != nil {
		return p.Config
	}
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second
// daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.Previous), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredStore(p Params, db *store.DB, logger *zap.Logger) (*credstore.Store, error) {
	return credstore.Open(db, profile.KeyPath(p.Profile), logger.Named("credstore"))
}

func provideTelemetry(lc fx.Lifecycle, p Params, cfg *config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	tp, err := telemetry.Setup(context.Background(), cfg.OTLPEndpoint, p.Profile, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(tp.Shutdown))
	return tp, nil
}

// provideBackend waits for telemetry so its tracer comes from the
// configured provider.
func provideBackend(cfg *config.Config, creds *credstore.Store, _ *telemetry.Provider, logger *zap.Logger) *backend.Client {
	return backend.New(cfg.APIBaseURL, cfg.HTTPTimeout.Duration, creds, logger.Named("backend"))
}

func provideRealtime(cfg *config.Config, creds *credstore.Store, m *status.Machine, b *bus.Bus, logger *zap.Logger) *realtime.Manager {
	return realtime.New(cfg.RealtimeURL, creds, m, b, logger.Named("realtime"))
}

func provideHub(cfg *config.Config, rest *backend.Client, rt *realtime.Manager, db *store.DB, b *bus.Bus, logger *zap.Logger) *chat.Hub {
	return chat.NewHub(chat.HubConfig{
		API:      rest,
		Channel:  rt,
		Cache:    db,
		Bus:      b,
		Logger:   logger.Named("chat"),
		PageSize: cfg.PageSize,
	})
}

func provideSessionManager(rest *backend.Client, creds *credstore.Store, rt *realtime.Manager, hub *chat.Hub, b *bus.Bus, logger *zap.Logger) *session.Manager {
	return session.NewManager(rest, creds, rt, hub, b, logger.Named("session"))
}

func provideTickets(p Params) *tickets.Renderer {
	return tickets.NewRenderer(profile.TicketDir(p.Profile))
}

// providePayment's default sheet has no payment method: purchases without
// one end as canceled.
func providePayment(cfg *config.Config, rest *backend.Client, tr *tickets.Renderer, b *bus.Bus, logger *zap.Logger) *payment.Controller {
	return payment.NewController(rest, payment.NewStripeSheet(cfg.StripePublishableKey, ""), tr, b, logger.Named("payment"))
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"))
}

func provideSessionService(p Params, sessions *session.Manager, creds *credstore.Store, rt *realtime.Manager, db *store.DB, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(p.Profile, sessions, creds, rt, db, logger.Named("api"))
}

func provideChatService(hub *chat.Hub, rest *backend.Client, sessions *session.Manager, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(hub, rest, sessions, b, logger.Named("api"))
}

func providePaymentService(cfg *config.Config, ctrl *payment.Controller) *api.PaymentService {
	return api.NewPaymentService(ctrl, func(pm string) payment.Sheet {
		return payment.NewStripeSheet(cfg.StripePublishableKey, pm)
	})
}

func provideDiscoverService(rest *backend.Client) *api.DiscoverService {
	return api.NewDiscoverService(rest)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, httpSrv *HTTPServer, lk *lock.Lock, db *store.DB, engine *intsync.Engine, sessions *session.Manager, rt *realtime.Manager, hub *chat.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to chat.* bus events).
			engine.Start(ctx)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := httpSrv.Start(); err != nil {
				return err
			}

			// Resume the stored session; connecting may take a while.
			go func() {
				sess, err := sessions.Restore(ctx)
				switch {
				case err != nil:
					logger.Error("restore session failed", zap.Error(err))
				case sess == nil:
					logger.Info("no credentials found, login required")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			rt.Disconnect()
			hub.Reset()
			engine.Stop()
			srv.Stop(stopCtx)
			httpSrv.Stop(stopCtx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

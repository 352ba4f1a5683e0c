package api

import (
	"context"
	"strings"
	"time"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/session"
	"github.com/nightvibe/nightvibe/internal/status"
	"github.com/nightvibe/nightvibe/internal/store"
	intsync "github.com/nightvibe/nightvibe/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Preferences are the device settings kept by the credential store.
type Preferences interface {
	Onboarded(ctx context.Context) (bool, error)
	SetOnboarded(ctx context.Context, v bool) error
	AccountType(ctx context.Context) (domain.AccountType, error)
	SetAccountType(ctx context.Context, t domain.AccountType) error
}

// Connection reports the realtime channel state.
type Connection interface {
	State() status.State
	SocketID() string
}

// SessionServer is the session half of the control API.
type SessionServer interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	SetOnboarded(context.Context, *SetOnboardedRequest) (*Empty, error)
	SetAccountType(context.Context, *SetAccountTypeRequest) (*Empty, error)
}

// SessionService implements SessionServer.
type SessionService struct {
	profile    string
	startedAt  time.Time
	sessions   *session.Manager
	prefs      Preferences
	conn       Connection
	db         *store.DB
	reconciler *intsync.Reconciler
	logger     *zap.Logger
}

// NewSessionService creates a new session service. db may be nil.
func NewSessionService(profile string, sessions *session.Manager, prefs Preferences, conn Connection, db *store.DB, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionService{
		profile:   profile,
		startedAt: time.Now(),
		sessions:  sessions,
		prefs:     prefs,
		conn:      conn,
		db:        db,
		logger:    logger,
	}
	if db != nil {
		s.reconciler = intsync.NewReconciler(db)
	}
	return s
}

func (s *SessionService) Status(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:  s.profile,
		Realtime: string(s.conn.State()),
		SocketID: s.conn.SocketID(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if sess := s.sessions.Current(); sess != nil {
		resp.LoggedIn = true
		resp.User = &sess.User
	}

	var err error
	if resp.Onboarded, err = s.prefs.Onboarded(ctx); err != nil {
		return nil, toStatus(err)
	}
	if resp.AccountType, err = s.prefs.AccountType(ctx); err != nil {
		return nil, toStatus(err)
	}

	// Populate counts from store.
	if s.db != nil {
		if n, err := s.db.ChatCount(ctx); err == nil {
			resp.ChatCount = n
		}
		if n, err := s.db.MessageCount(ctx); err == nil {
			resp.MessageCount = n
		}
		if t, err := s.reconciler.LastSynced(ctx, intsync.ScopeChats); err == nil {
			resp.LastChatSync = t
		}
	}
	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, invalid("email and password are required")
	}

	var (
		sess *domain.Session
		err  error
	)
	if req.Signup {
		if strings.TrimSpace(req.Username) == "" {
			return nil, invalid("username is required to sign up")
		}
		sess, err = s.sessions.Signup(ctx, backend.SignupRequest{
			Username:    strings.TrimSpace(req.Username),
			Email:       email,
			Password:    req.Password,
			AccountType: req.AccountType,
		})
	} else {
		sess, err = s.sessions.Login(ctx, email, req.Password)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	if sess.User.AccountType != "" {
		// Login already succeeded.
		if err := s.prefs.SetAccountType(ctx, sess.User.AccountType); err != nil {
			s.logger.Warn("save account type", zap.String("account_type", string(sess.User.AccountType)), zap.Error(err))
		}
	}
	return &LoginResponse{User: sess.User}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.sessions.Logout(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *SessionService) SetOnboarded(ctx context.Context, req *SetOnboardedRequest) (*Empty, error) {
	if err := s.prefs.SetOnboarded(ctx, req.Onboarded); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *SessionService) SetAccountType(ctx context.Context, req *SetAccountTypeRequest) (*Empty, error) {
	if err := s.prefs.SetAccountType(ctx, req.AccountType); err != nil {
		return nil, invalid(err.Error())
	}
	return &Empty{}, nil
}

const sessionServiceName = "SessionService"

// SessionServiceDesc describes SessionServer to grpc.Server.RegisterService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + sessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(sessionServiceName, "Status", SessionServer.Status),
		unary(sessionServiceName, "Login", SessionServer.Login),
		unary(sessionServiceName, "Logout", SessionServer.Logout),
		unary(sessionServiceName, "SetOnboarded", SessionServer.SetOnboarded),
		unary(sessionServiceName, "SetAccountType", SessionServer.SetAccountType),
	},
}

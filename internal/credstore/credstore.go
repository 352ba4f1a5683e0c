// Package credstore persists the session credentials of a profile: the auth
// token, the cached user, the onboarding flag and the active account type.
// Values live encrypted in the profile database.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/store"
	"go.uber.org/zap"
)

const (
	keyToken       = "auth.token"
	keyUser        = "auth.user"
	keyOnboarded   = "app.onboarded"
	keyAccountType = "app.account_type"
)

// ErrCorrupt is returned when a stored entry cannot be decrypted.
var ErrCorrupt = errors.New("credential store entry is corrupt")

// Store is the encrypted credential store of one profile.
type Store struct {
	db     *store.DB
	key    []byte
	logger *zap.Logger
	now    func() time.Time
}

// Open loads (or creates) the device key at keyPath and returns a store
// backed by db.
func Open(db *store.DB, keyPath string, logger *zap.Logger) (*Store, error) {
	deviceKey, err := loadDeviceKey(keyPath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, key: deriveKey(deviceKey), logger: logger, now: time.Now}, nil
}

// Token returns the stored auth token, or "" when there is none or it has
// expired.
func (s *Store) Token(ctx context.Context) (string, error) {
	var token string
	ok, err := s.get(ctx, keyToken, &token)
	if err != nil || !ok {
		return "", err
	}
	if expired(token, s.now()) {
		s.logger.Info("stored token expired, treating session as absent")
		return "", nil
	}
	return token, nil
}

// Session returns the persisted session, or nil when logged out.
func (s *Store) Session(ctx context.Context) (*domain.Session, error) {
	token, err := s.Token(ctx)
	if err != nil || token == "" {
		return nil, err
	}
	sess := &domain.Session{AuthToken: token}
	if _, err := s.get(ctx, keyUser, &sess.User); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveSession persists token and user.
func (s *Store) SaveSession(ctx context.Context, sess *domain.Session) error {
	if !sess.Valid() {
		return errors.New("save session: empty token")
	}
	if err := s.put(ctx, keyToken, sess.AuthToken); err != nil {
		return err
	}
	return s.put(ctx, keyUser, sess.User)
}

// SaveUser replaces the cached user profile.
func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	return s.put(ctx, keyUser, u)
}

// ClearSession removes token and user. Device preferences are kept.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.db.DeleteSecrets(ctx, keyToken, keyUser)
}

// Onboarded reports whether the onboarding flow has been completed.
func (s *Store) Onboarded(ctx context.Context) (bool, error) {
	var v bool
	_, err := s.get(ctx, keyOnboarded, &v)
	return v, err
}

func (s *Store) SetOnboarded(ctx context.Context, v bool) error {
	return s.put(ctx, keyOnboarded, v)
}

// AccountType returns the active account type, defaulting to a regular user.
func (s *Store) AccountType(ctx context.Context) (domain.AccountType, error) {
	var v domain.AccountType
	ok, err := s.get(ctx, keyAccountType, &v)
	if err != nil || !ok || v == "" {
		return domain.AccountUser, err
	}
	return v, nil
}

func (s *Store) SetAccountType(ctx context.Context, t domain.AccountType) error {
	switch t {
	case domain.AccountUser, domain.AccountVendor, domain.AccountGuide:
	default:
		return fmt.Errorf("unknown account type %q", t)
	}
	return s.put(ctx, keyAccountType, t)
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	ciphertext, nonce, err := encryptEntry(v, s.key)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	if err := s.db.PutSecret(ctx, key, nonce, ciphertext); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	sec, err := s.db.GetSecret(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if sec == nil {
		return false, nil
	}
	if err := decryptEntry(sec.Value, sec.Nonce, s.key, v); err != nil {
		return false, fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return true, nil
}

// expired reports whether a JWT's exp claim is in the past. Tokens that are
// not JWTs, or carry no exp, never expire client-side.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now)
}

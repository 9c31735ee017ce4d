package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/model"
	"kplays-api/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "kps_"

	// DefaultSessionTTL is the default session lifetime
	DefaultSessionTTL = 12 * time.Hour

	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6

	sessionKeyPrefix = "session:"
)

// AuthConfig holds the admin credentials and the session lifetime.
type AuthConfig struct {
	AdminEmail string
	// AdminPasswordHash is the bcrypt hash of the admin password. The admin
	// account is never stored; without a hash nobody can sign in as admin.
	AdminPasswordHash string
	SessionTTL        time.Duration
}

// AuthService handles dashboard accounts and session tokens. Sessions live
// in a cache so they expire on their own.
type AuthService struct {
	users      repository.UserRepository
	sessions   cache.Cache
	adminEmail string
	adminHash  []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users repository.UserRepository, sessions cache.Cache, cfg AuthConfig) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		adminEmail: normalizeEmail(cfg.AdminEmail),
		adminHash:  []byte(strings.TrimSpace(cfg.AdminPasswordHash)),
		ttl:        cfg.SessionTTL,
		now:        time.Now,
	}
}

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	return s.adminEmail != "" && email == s.adminEmail
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers an account.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if s.isAdminEmail(email) {
		return nil, fmt.Errorf("%w: this account cannot be registered", ErrUnauthorized)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	slog.Info("account created", "email", email)
	return u, nil
}

// SignIn checks credentials and issues a session token. The admin email is
// checked against the configured hash only, never against stored accounts.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, *model.Session, error) {
	email = normalizeEmail(email)

	var u *model.User
	if s.isAdminEmail(email) {
		if len(s.adminHash) == 0 || bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)) != nil {
			return "", nil, ErrInvalidCredentials
		}
		u = &model.User{ID: "admin", Email: email}
	} else {
		found, err := s.users.GetUserByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		if err != nil {
			return "", nil, err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
			return "", nil, ErrInvalidCredentials
		}
		u = found
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	now := s.now().UTC()
	sess := &model.Session{UserID: u.ID, Email: u.Email, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	if err := s.store(ctx, token, sess); err != nil {
		return "", nil, err
	}

	slog.Info("signed in", "email", u.Email, "expires", sess.ExpiresAt)
	return token, sess, nil
}

func (s *AuthService) store(ctx context.Context, token string, sess *model.Session) error {
	if err := cache.SetJSON(ctx, s.sessions, sessionKeyPrefix+token, sess, s.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Validate returns the session behind token.
func (s *AuthService) Validate(ctx context.Context, token string) (*model.Session, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrUnauthorized
	}

	var sess model.Session
	err := cache.GetJSON(ctx, s.sessions, sessionKeyPrefix+token, &sess)
	if cache.IsMiss(err) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if !s.now().Before(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, sessionKeyPrefix+token)
		return nil, ErrUnauthorized
	}
	return &sess, nil
}

// SignOut revokes token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, sessionKeyPrefix+token)
}

// Refresh extends a valid session by the session lifetime.
func (s *AuthService) Refresh(ctx context.Context, token string) (*model.Session, error) {
	sess, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = s.now().UTC().Add(s.ttl)
	if err := s.store(ctx, token, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// IsAdmin reports whether the session belongs to the allow-listed admin.
func (s *AuthService) IsAdmin(sess *model.Session) bool {
	if sess == nil || s.adminEmail == "" {
		return false
	}
	return normalizeEmail(sess.Email) == s.adminEmail
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gym-crm/auth-backend/internal/db"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// comparePassword is swapped in tests to observe bcrypt calls.
var comparePassword = bcrypt.CompareHashAndPassword

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// unknownUserHash returns a fixed hash at the default cost so a login for
// an unknown username spends the same bcrypt time as a real one.
func unknownUserHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user-placeholder"), bcrypt.DefaultCost)
	})
	return dummyHash
}

type UserCreator interface {
	CreateUser(ctx context.Context, username, passwordHash string, role model.Role) (*model.Principal, error)
}

// forgetter is implemented by caching user directories.
type forgetter interface {
	Forget(username string)
}

type AuthService struct {
	users     UserDirectory
	lifecycle *TokenLifecycle
	guard     BruteForceGuard
	metrics   *observability.Metrics
}

// LoginResult carries the two tokens minted by a successful login.
type LoginResult struct {
	Access  *model.Token
	Refresh *model.Token
}

func NewAuthService(users UserDirectory, lifecycle *TokenLifecycle, guard BruteForceGuard, metrics *observability.Metrics) *AuthService {
	return &AuthService{
		users:     users,
		lifecycle: lifecycle,
		guard:     guard,
		metrics:   metrics,
	}
}

// EnsureAdmin creates an ADMIN principal when username is unknown.
func (s *AuthService) EnsureAdmin(ctx context.Context, creator UserCreator, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" && password == "" {
		return nil
	}
	if len(username) < minUsernameLength || len(password) < minPasswordLength {
		return fmt.Errorf("%w: ADMIN_USERNAME/ADMIN_PASSWORD too short", ErrMisconfigured)
	}

	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = creator.CreateUser(ctx, username, string(hash), model.RoleAdmin)
	return err
}

// Login checks the lock, the credentials and then replaces every prior
// session of the principal with a fresh access/refresh pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	log := observability.LoggerFrom(ctx).WithField("username", username)

	locked, err := s.guard.IsLocked(ctx, username)
	if err != nil {
		return nil, err
	}
	if locked {
		s.metrics.Login("locked")
		return nil, ErrAccountLocked
	}

	principal, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			_ = comparePassword(unknownUserHash(), []byte(password))
			s.registerFailure(ctx, username)
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := comparePassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		s.registerFailure(ctx, username)
		return nil, ErrBadCredentials
	}
	if !principal.Active {
		s.metrics.Login("disabled")
		return nil, ErrAccountDisabled
	}

	if err := s.guard.ResetAttempts(ctx, username); err != nil {
		log.WithError(err).Warn("reset_attempts_failed")
	}

	if err := s.lifecycle.RevokeAll(ctx, principal.ID); err != nil {
		return nil, err
	}
	access, err := s.lifecycle.IssueAccess(ctx, principal)
	if err != nil {
		return nil, err
	}
	refresh, err := s.lifecycle.IssueRefresh(ctx, principal)
	if err != nil {
		return nil, err
	}

	s.metrics.Login("success")
	log.Info("login_succeeded")
	return &LoginResult{Access: access, Refresh: refresh}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}
	return s.lifecycle.Refresh(ctx, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, user *model.AuthUser) error {
	if user == nil {
		return ErrUserNotFound
	}
	return s.lifecycle.RevokeAll(ctx, user.ID)
}

// RevokeUser ends every session of username and drops the cached
// principal so the next request reloads it.
func (s *AuthService) RevokeUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	s.forget(username)

	principal, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}
	return s.lifecycle.RevokeAll(ctx, principal.ID)
}

// Unlock clears the failed-attempt state of username.
func (s *AuthService) Unlock(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidInput
	}
	s.forget(username)
	return s.guard.ResetAttempts(ctx, username)
}

func (s *AuthService) forget(username string) {
	if f, ok := s.users.(forgetter); ok {
		f.Forget(username)
	}
}

func (s *AuthService) IsLocked(ctx context.Context, username string) (bool, error) {
	return s.guard.IsLocked(ctx, username)
}

func (s *AuthService) registerFailure(ctx context.Context, username string) {
	s.metrics.Login("failure")

	justLocked, err := s.guard.RegisterFailedAttempt(ctx, username)
	if err != nil {
		observability.LoggerFrom(ctx).WithError(err).Error("register_failed_attempt_failed")
		observability.CaptureError(ctx, err)
		return
	}
	if justLocked {
		s.metrics.Locked()
		observability.LoggerFrom(ctx).WithField("username", username).Warn("account_locked")
	}
}

// IsCredentialError reports whether err must be answered with the
// generic invalid-credentials response.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBadCredentials) ||
		errors.Is(err, ErrAccountDisabled)
}

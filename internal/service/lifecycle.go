package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gym-crm/auth-backend/internal/db"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
)

type TokenStore interface {
	SaveToken(ctx context.Context, token *model.Token) error
	FindAllValidTokens(ctx context.Context, principalID int64) ([]model.Token, error)
	FindTokenByString(ctx context.Context, token string) (*model.Token, error)
	SaveAllTokens(ctx context.Context, tokens []model.Token) error
}

type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*model.Principal, error)
}

// TokenLifecycle issues, validates, refreshes and revokes tokens. Every
// issued token is persisted; validation always consults the store.
type TokenLifecycle struct {
	codec      *TokenCodec
	store      TokenStore
	users      UserDirectory
	accessTTL  time.Duration
	refreshTTL time.Duration
	metrics    *observability.Metrics
}

func NewTokenLifecycle(codec *TokenCodec, store TokenStore, users UserDirectory, accessTTL, refreshTTL time.Duration, metrics *observability.Metrics) (*TokenLifecycle, error) {
	if accessTTL <= 0 {
		return nil, fmt.Errorf("%w: access ttl must be positive", ErrMisconfigured)
	}
	if refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: refresh ttl must be positive", ErrMisconfigured)
	}
	return &TokenLifecycle{
		codec:      codec,
		store:      store,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		metrics:    metrics,
	}, nil
}

func (l *TokenLifecycle) IssueAccess(ctx context.Context, principal *model.Principal) (*model.Token, error) {
	return l.issue(ctx, principal, model.TokenPurposeAccess, l.accessTTL)
}

func (l *TokenLifecycle) IssueRefresh(ctx context.Context, principal *model.Principal) (*model.Token, error) {
	return l.issue(ctx, principal, model.TokenPurposeRefresh, l.refreshTTL)
}

func (l *TokenLifecycle) issue(ctx context.Context, principal *model.Principal, purpose model.TokenPurpose, ttl time.Duration) (*model.Token, error) {
	if principal == nil {
		return nil, fmt.Errorf("%w: nil principal", ErrInvalidInput)
	}

	id := uuid.New()
	claims := TokenClaims{
		Type:        string(purpose),
		Permissions: principal.Permissions,
	}
	claims.ID = id.String()

	signed, expiresAt, err := l.codec.Sign(principal.Username, claims, ttl)
	if err != nil {
		return nil, err
	}

	token := &model.Token{
		ID:          id,
		Kind:        model.TokenKindBearer,
		Purpose:     purpose,
		Token:       signed,
		TTL:         ttl,
		PrincipalID: principal.ID,
		ExpiresAt:   expiresAt,
		CreatedAt:   l.codec.Now(),
	}
	if err := l.store.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("save %s token: %w", purpose, err)
	}

	l.metrics.Issued(string(purpose))
	return token, nil
}

// Validate reports whether tokenStr is a live access token of principal.
func (l *TokenLifecycle) Validate(ctx context.Context, tokenStr string, principal *model.Principal) bool {
	return l.Check(ctx, tokenStr, principal) == nil
}

// Check is Validate with the rejection reason. Codec and lifecycle
// rejections satisfy IsTokenError; anything else is a store failure.
func (l *TokenLifecycle) Check(ctx context.Context, tokenStr string, principal *model.Principal) error {
	if principal == nil {
		return ErrUserNotFound
	}

	claims, err := l.codec.Verify(tokenStr)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			l.markExpired(ctx, tokenStr)
		}
		return err
	}
	if claims.Subject != principal.Username {
		return ErrSubjectMismatch
	}
	if claims.Type != string(model.TokenPurposeAccess) {
		return fmt.Errorf("%w: %q token used for access", ErrUnsupportedToken, claims.Type)
	}
	if !principal.Active {
		return ErrAccountDisabled
	}

	record, err := l.store.FindTokenByString(ctx, tokenStr)
	if err != nil {
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: unknown token", ErrTokenRevoked)
		}
		return fmt.Errorf("find token: %w", err)
	}
	if record.PrincipalID != principal.ID {
		return ErrSubjectMismatch
	}
	if record.Revoked {
		return ErrTokenRevoked
	}
	if record.Expired {
		return ErrExpiredToken
	}
	return nil
}

// RevokeAll flips every live token of the principal to revoked and
// expired in one batch. Calling it again is a no-op.
func (l *TokenLifecycle) RevokeAll(ctx context.Context, principalID int64) error {
	tokens, err := l.store.FindAllValidTokens(ctx, principalID)
	if err != nil {
		return fmt.Errorf("find valid tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	for i := range tokens {
		tokens[i].Revoked = true
		tokens[i].Expired = true
	}
	if err := l.store.SaveAllTokens(ctx, tokens); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}

	l.metrics.Revoked(len(tokens))
	observability.LoggerFrom(ctx).
		WithField("principal_id", principalID).
		WithField("count", len(tokens)).
		Info("tokens_revoked")
	return nil
}

// Refresh mints a new access token from a live refresh token. Every
// rejection is reported as ErrInvalidRefreshToken.
func (l *TokenLifecycle) Refresh(ctx context.Context, refreshToken string) (*model.Token, error) {
	claims, err := l.codec.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			l.markExpired(ctx, refreshToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Type != string(model.TokenPurposeRefresh) {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidRefreshToken)
	}

	record, err := l.store.FindTokenByString(ctx, refreshToken)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: unknown token", ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	if !record.Active() {
		return nil, fmt.Errorf("%w: token revoked or expired", ErrInvalidRefreshToken)
	}

	principal, err := l.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !principal.Active || principal.ID != record.PrincipalID {
		return nil, fmt.Errorf("%w: principal not eligible", ErrInvalidRefreshToken)
	}

	return l.IssueAccess(ctx, principal)
}

// markExpired records natural expiry on the stored token. Failures are
// logged only; the caller is rejecting the token either way.
func (l *TokenLifecycle) markExpired(ctx context.Context, tokenStr string) {
	record, err := l.store.FindTokenByString(ctx, tokenStr)
	if err != nil || record.Expired {
		return
	}
	record.Expired = true
	if err := l.store.SaveToken(ctx, record); err != nil {
		observability.LoggerFrom(ctx).WithError(err).Warn("mark_token_expired_failed")
	}
}

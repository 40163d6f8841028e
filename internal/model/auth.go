package model

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const TokenKindBearer TokenKind = "BEARER"

type TokenPurpose string

const (
	TokenPurposeAccess  TokenPurpose = "access"
	TokenPurposeRefresh TokenPurpose = "refresh"
)

// Token is the persisted record of a signed bearer token. Records are
// never deleted; revocation and expiry only flip the flags.
type Token struct {
	ID          uuid.UUID
	Kind        TokenKind
	Purpose     TokenPurpose
	Token       string
	TTL         time.Duration
	Revoked     bool
	Expired     bool
	PrincipalID int64
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (t *Token) Active() bool {
	return !t.Revoked && !t.Expired
}

// Principal is owned by user management; the auth core only reads it.
type Principal struct {
	ID           int64
	Username     string
	PasswordHash string
	Active       bool
	Role         Role
	Permissions  []string
}

// AuthUser is the security context attached to an authenticated request.
type AuthUser struct {
	ID          int64
	Username    string
	Role        Role
	Permissions []string
	Token       string
}

func (u *AuthUser) HasPermission(capability string) bool {
	for _, perm := range u.Permissions {
		if perm == capability {
			return true
		}
	}
	return false
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type RefreshResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type AuthMeResponse struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

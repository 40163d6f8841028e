package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLength = 32

// TokenClaims is the payload of every token this service signs.
type TokenClaims struct {
	Type        string   `json:"typ,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens with one configured key.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMissingSigningSecret)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: JWT_SECRET must be at least %d bytes", ErrMisconfigured, minSecretLength)
	}

	return &TokenCodec{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source used for signing and verification.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Sign embeds sub, iat, exp and jti into claims and returns the signed
// token with its expiry. A jti preset on claims is kept.
func (c *TokenCodec) Sign(subject string, claims TokenClaims, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: non-positive ttl", ErrInvalidInput)
	}

	now := c.now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = expiresAt
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Verify checks signature, then claims. An expired token with a good
// signature fails with ErrExpiredToken.
func (c *TokenCodec) Verify(tokenStr string) (*TokenClaims, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ExtractSubject returns the token subject. With strictExpiry false an
// expired but correctly signed token still yields its subject; every
// other failure propagates.
func (c *TokenCodec) ExtractSubject(tokenStr string, strictExpiry bool) (string, error) {
	claims, err := c.parse(tokenStr)
	if err != nil && (strictExpiry || !errors.Is(err, ErrExpiredToken)) {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	return claims.Subject, nil
}

func (c *TokenCodec) parse(tokenStr string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, c.keyFunc, opts...)
	if err != nil {
		return claims, classifyJWTError(err)
	}
	return claims, nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, ErrUnsupportedToken
	}
	return c.secret, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedToken),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrUnsupportedToken, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

package service

import "errors"

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrExpiredToken     = errors.New("token expired")
	ErrUnsupportedToken = errors.New("unsupported token")
	ErrInvalidSignature = errors.New("invalid token signature")

	ErrTokenRevoked        = errors.New("token revoked")
	ErrSubjectMismatch     = errors.New("token subject mismatch")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredentials  = errors.New("bad credentials")
	ErrAccountDisabled = errors.New("account disabled")
	ErrAccountLocked   = errors.New("account locked")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")

	ErrMissingSigningSecret = errors.New("signing secret missing")
	ErrMisconfigured        = errors.New("auth config invalid")
)

// IsTokenError reports whether err is a codec or lifecycle rejection of
// the presented token, as opposed to an infrastructure failure.
func IsTokenError(err error) bool {
	for _, target := range []error{
		ErrMalformedToken,
		ErrExpiredToken,
		ErrUnsupportedToken,
		ErrInvalidSignature,
		ErrTokenRevoked,
		ErrSubjectMismatch,
		ErrInvalidRefreshToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

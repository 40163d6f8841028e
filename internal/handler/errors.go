package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
	"github.com/gym-crm/auth-backend/internal/service"
)

const (
	msgMissingToken     = "Missing bearer token"
	msgBadCredentials   = "Invalid username or password"
	msgAccountLocked    = "Too many failed login attempts"
	msgForbidden        = "Access denied"
	msgInvalidRequest   = "Invalid request"
	msgInternal         = "Internal server error"
	msgInvalidRefresh   = "Invalid refresh token"
	msgUnauthorizedUser = "User is not authenticated"
	msgUserNotFound     = "User not found"
)

type errorMapping struct {
	target  error
	status  int
	message string
	reason  string
}

// Ordered: lifecycle reasons come before the codec reasons they may wrap.
var errorMappings = []errorMapping{
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, msgInvalidRefresh, "invalid_refresh"},
	{service.ErrTokenRevoked, http.StatusUnauthorized, "Token has been revoked", "revoked"},
	{service.ErrSubjectMismatch, http.StatusUnauthorized, "Token does not match user", "subject_mismatch"},
	{service.ErrMalformedToken, http.StatusUnauthorized, "Malformed token", "malformed"},
	{service.ErrExpiredToken, http.StatusUnauthorized, "Token has expired", "expired"},
	{service.ErrUnsupportedToken, http.StatusUnauthorized, "Unsupported token", "unsupported"},
	{service.ErrInvalidSignature, http.StatusUnauthorized, "Invalid token signature", "invalid_signature"},
	{service.ErrUserNotFound, http.StatusUnauthorized, msgBadCredentials, "user_not_found"},
	{service.ErrBadCredentials, http.StatusUnauthorized, msgBadCredentials, "bad_credentials"},
	{service.ErrAccountDisabled, http.StatusUnauthorized, msgBadCredentials, "disabled"},
	{service.ErrAccountLocked, http.StatusForbidden, msgAccountLocked, "locked"},
	{service.ErrForbidden, http.StatusForbidden, msgForbidden, "forbidden"},
	{service.ErrInvalidInput, http.StatusBadRequest, msgInvalidRequest, "invalid_input"},
}

func classifyError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return errorMapping{status: http.StatusInternalServerError, message: msgInternal, reason: "internal"}
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Message: message})
}

// writeAuthError translates a service error into the JSON error body.
// Unclassified errors are logged and reported before answering 500.
func writeAuthError(c *gin.Context, err error) {
	m := classifyError(err)
	if m.status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		observability.LoggerFrom(ctx).WithError(err).Error("auth_request_failed")
		observability.CaptureError(ctx, err)
	}
	writeError(c, m.status, m.message)
}

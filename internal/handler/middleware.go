package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gym-crm/auth-backend/internal/db"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
	"github.com/gym-crm/auth-backend/internal/service"
)

const (
	authUserKey = "auth_user"

	// maxAuthBodyBytes caps login bodies; credentials never come close.
	maxAuthBodyBytes = 16 << 10
)

type lockChecker interface {
	IsLocked(ctx context.Context, username string) (bool, error)
}

// AuthenticationGate resolves the bearer token to a principal and stores
// the resulting model.AuthUser on the context. Any failure aborts with a
// JSON error; nothing escapes to the recovery handler.
func AuthenticationGate(codec *service.TokenCodec, users service.UserDirectory, lifecycle *service.TokenLifecycle, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.Rejected("missing_token")
			writeError(c, http.StatusUnauthorized, msgMissingToken)
			return
		}

		ctx := c.Request.Context()

		// Lenient: an expired token still names its owner, the lifecycle
		// check below rejects it.
		username, err := codec.ExtractSubject(token, false)
		if err != nil {
			rejectRequest(c, metrics, err)
			return
		}

		principal, err := users.FindByUsername(ctx, username)
		if err != nil {
			if db.IsNoRows(err) {
				err = service.ErrUserNotFound
			}
			rejectRequest(c, metrics, err)
			return
		}

		if err := lifecycle.Check(ctx, token, principal); err != nil {
			rejectRequest(c, metrics, err)
			return
		}

		c.Set(authUserKey, &model.AuthUser{
			ID:          principal.ID,
			Username:    principal.Username,
			Role:        principal.Role,
			Permissions: principal.Permissions,
			Token:       token,
		})
		c.Next()
	}
}

// LimitBody caps the request body at n bytes. Reads past the limit fail,
// which the binding layer turns into a 400.
func LimitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// BruteForceFilter rejects login requests for locked usernames before
// the credentials are looked at. Bodies it cannot read are left for the
// login handler to reject.
func BruteForceFilter(guard lockChecker, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.LoginRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			c.Next()
			return
		}

		locked, err := guard.IsLocked(c.Request.Context(), req.Username)
		if err != nil {
			writeAuthError(c, err)
			return
		}
		if locked {
			metrics.Login("locked")
			writeError(c, http.StatusForbidden, msgAccountLocked)
			return
		}
		c.Next()
	}
}

// RequirePermission must run after AuthenticationGate.
func RequirePermission(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			writeError(c, http.StatusUnauthorized, msgUnauthorizedUser)
			return
		}
		if !user.HasPermission(capability) {
			writeAuthError(c, fmt.Errorf("%w: missing %s", service.ErrForbidden, capability))
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

// CORSMiddleware answers preflights and echoes allowed origins. Tokens
// travel in the Authorization header, so credentials are never allowed.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+observability.RequestIDHeader)
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// rejectRequest logs presented-token failures at debug and account
// failures at info; writeAuthError reports the rest.
func rejectRequest(c *gin.Context, metrics *observability.Metrics, err error) {
	m := classifyError(err)
	metrics.Rejected(m.reason)

	log := observability.LoggerFrom(c.Request.Context()).WithField("reason", m.reason)
	switch {
	case service.IsTokenError(err):
		log.Debug("token_rejected")
	case m.status != http.StatusInternalServerError:
		log.Info("authentication_rejected")
	}
	writeAuthError(c, err)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
	"github.com/gym-crm/auth-backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login godoc
// @Summary Login
// @Description Issues an access/refresh pair and revokes every earlier session of the user.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username and password"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		writeError(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	result, err := h.svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if service.IsCredentialError(err) {
			observability.LoggerFrom(ctx).WithField("username", req.Username).Info("login_rejected")
			writeError(c, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.LoginResponse{
		AccessToken:  result.Access.Token,
		RefreshToken: result.Refresh.Token,
		ExpiresAt:    result.Access.ExpiresAt,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Expects the refresh token in the Authorization header.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.RefreshResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		writeError(c, http.StatusUnauthorized, msgMissingToken)
		return
	}

	access, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RefreshResponse{
		AccessToken: access.Token,
		ExpiresAt:   access.ExpiresAt,
	})
}

// Logout godoc
// @Summary Logout
// @Description Revokes every token of the caller.
// @Tags auth
// @Security BearerAuth
// @Success 200
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), GetAuthUser(c)); err != nil {
		writeAuthError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AuthMeResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, http.StatusUnauthorized, msgUnauthorizedUser)
		return
	}
	c.JSON(http.StatusOK, model.AuthMeResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		Permissions: user.Permissions,
	})
}

// RevokeUser godoc
// @Summary Revoke all sessions of a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/admin/users/{username}/revoke [post]
func (h *AuthHandler) RevokeUser(c *gin.Context) {
	if err := h.svc.RevokeUser(c.Request.Context(), c.Param("username")); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(c, http.StatusNotFound, msgUserNotFound)
			return
		}
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "revoked"})
}

// UnlockUser godoc
// @Summary Clear the brute-force lock of a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/admin/users/{username}/unlock [post]
func (h *AuthHandler) UnlockUser(c *gin.Context) {
	if err := h.svc.Unlock(c.Request.Context(), c.Param("username")); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "unlocked"})
}

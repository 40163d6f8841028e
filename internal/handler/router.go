package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/gym-crm/auth-backend/internal/observability"
	"github.com/gym-crm/auth-backend/internal/service"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Logger         logrus.FieldLogger
	Metrics        *observability.Metrics
	Auth           *service.AuthService
	Codec          *service.TokenCodec
	Users          service.UserDirectory
	Lifecycle      *service.TokenLifecycle
	Store          pinger
	AllowedOrigins []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(
		observability.RequestIDMiddleware(deps.Logger),
		observability.RequestLoggingMiddleware(deps.Metrics),
		observability.RecoverMiddleware(),
	)
	if len(deps.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(deps.AllowedOrigins))
	}

	router.GET("/", Root)
	router.GET("/ping", Ping)
	router.GET("/healthz", Health(deps.Store))
	router.GET("/openapi.json", OpenAPIDoc)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	gate := AuthenticationGate(deps.Codec, deps.Users, deps.Lifecycle, deps.Metrics)
	authHandler := NewAuthHandler(deps.Auth)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", LimitBody(maxAuthBodyBytes), BruteForceFilter(deps.Auth, deps.Metrics), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", gate, authHandler.Logout)
	auth.GET("/me", gate, authHandler.Me)

	admin := api.Group("/admin", gate, RequirePermission(model.CapUserManage))
	admin.POST("/users/:username/revoke", authHandler.RevokeUser)
	admin.POST("/users/:username/unlock", authHandler.UnlockUser)

	return router
}

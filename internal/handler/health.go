package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gym-crm/auth-backend/internal/model"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping answers liveness checks.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Root reports that the service is up.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "auth backend is running",
	})
}

// Health reports 503 when the token store does not answer within 2s.
func Health(store pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := model.HealthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
		if err := store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body.Status = "degraded"
		}
		c.JSON(status, body)
	}
}

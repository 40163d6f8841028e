package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL", "BRUTE_FORCE_BACKEND",
		"LOGIN_MAX_ATTEMPTS", "LOGIN_LOCK_DURATION", "STORE_BACKEND", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "15m", cfg.Auth.JWTAccessTTL)
	assert.Equal(t, "168h", cfg.Auth.JWTRefreshTTL)
	assert.Equal(t, "memory", cfg.BruteForce.Backend)
	assert.Equal(t, "3", cfg.BruteForce.MaxAttempts)
	assert.Equal(t, "5m", cfg.BruteForce.LockDuration)
	assert.Equal(t, "postgres", cfg.Postgres.StoreBackend)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BRUTE_FORCE_BACKEND", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("LOGIN_MAX_ATTEMPTS", " 5 ")

	cfg := Load()
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "redis", cfg.BruteForce.Backend)
	assert.Equal(t, "5", cfg.BruteForce.MaxAttempts)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
}

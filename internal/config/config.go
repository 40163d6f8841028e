package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Auth       AuthConfig
	BruteForce BruteForceConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Sentry     SentryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Addr           string
	GinMode        string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	JWTAccessTTL  string
	JWTRefreshTTL string
	AdminUsername string
	AdminPassword string
}

type BruteForceConfig struct {
	Backend      string
	MaxAttempts  string
	LockDuration string
}

type PostgresConfig struct {
	// StoreBackend selects "postgres" or "memory" for tokens and principals.
	StoreBackend string
	DatabaseURL  string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
}

type RedisConfig struct {
	URL string
}

type CacheConfig struct {
	UserTTL  string
	UserSize string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the process environment. A .env file in the working
// directory is merged in first when present; real env vars win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Addr:           getenv("HTTP_ADDR", ":8080"),
			GinMode:        getenv("GIN_MODE", "release"),
			AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			JWTIssuer:     os.Getenv("JWT_ISSUER"),
			JWTAccessTTL:  getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL: getenv("JWT_REFRESH_TTL", "168h"),
			AdminUsername: os.Getenv("ADMIN_USERNAME"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		BruteForce: BruteForceConfig{
			Backend:      strings.ToLower(getenv("BRUTE_FORCE_BACKEND", "memory")),
			MaxAttempts:  getenv("LOGIN_MAX_ATTEMPTS", "3"),
			LockDuration: getenv("LOGIN_LOCK_DURATION", "5m"),
		},
		Postgres: PostgresConfig{
			StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "postgres")),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			Host:         getenv("PGHOST", "localhost"),
			Port:         getenv("PGPORT", "5432"),
			User:         os.Getenv("PGUSER"),
			Password:     os.Getenv("PGPASSWORD"),
			Database:     os.Getenv("PGDATABASE"),
			SSLMode:      getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getenv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Cache: CacheConfig{
			UserTTL:  getenv("USER_CACHE_TTL", "30s"),
			UserSize: getenv("USER_CACHE_SIZE", "1024"),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: getenv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

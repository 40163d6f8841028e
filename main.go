package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gym-crm/auth-backend/internal/config"
	"github.com/gym-crm/auth-backend/internal/db"
	"github.com/gym-crm/auth-backend/internal/handler"
	"github.com/gym-crm/auth-backend/internal/observability"
	"github.com/gym-crm/auth-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type tokenBackend interface {
	service.TokenStore
	service.UserDirectory
	service.UserCreator
	Ping(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server_exited")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.WithError(err).Error("init_sentry_failed")
	}
	defer observability.FlushSentry()

	// The signing key is checked first: without it nothing is served.
	codec, err := service.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		return err
	}
	accessTTL, err := parseDuration("JWT_ACCESS_TTL", cfg.Auth.JWTAccessTTL)
	if err != nil {
		return err
	}
	refreshTTL, err := parseDuration("JWT_REFRESH_TTL", cfg.Auth.JWTRefreshTTL)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer closeBackend()

	users, err := newDirectory(backend, cfg.Cache)
	if err != nil {
		return err
	}

	guard, closeGuard, err := newGuard(ctx, cfg.BruteForce, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeGuard()

	metrics := observability.NewMetrics()
	lifecycle, err := service.NewTokenLifecycle(codec, backend, users, accessTTL, refreshTTL, metrics)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(users, lifecycle, guard, metrics)

	if err := authService.EnsureAdmin(ctx, backend, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(handler.RouterDeps{
		Logger:         logger,
		Metrics:        metrics,
		Auth:           authService,
		Codec:          codec,
		Users:          users,
		Lifecycle:      lifecycle,
		Store:          backend,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", srv.Addr).Info("server_started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server_stopping")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg config.PostgresConfig) (tokenBackend, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return db.NewMemoryStore(), func() {}, nil
	case "postgres", "":
		pool, err := db.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewPostgres(pool)
		if err := store.EnsureAuthSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure auth schema: %w", err)
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown STORE_BACKEND %q", service.ErrMisconfigured, cfg.StoreBackend)
	}
}

func newDirectory(backend service.UserDirectory, cfg config.CacheConfig) (service.UserDirectory, error) {
	ttl, err := parseDuration("USER_CACHE_TTL", cfg.UserTTL)
	if err != nil {
		return nil, err
	}
	if ttl == 0 {
		return backend, nil
	}
	size, err := strconv.Atoi(cfg.UserSize)
	if err != nil || size <= 0 {
		return nil, fmt.Errorf("%w: invalid USER_CACHE_SIZE", service.ErrMisconfigured)
	}
	return db.NewCachedDirectory(backend, size, ttl), nil
}

func newGuard(ctx context.Context, cfg config.BruteForceConfig, redisCfg config.RedisConfig) (service.BruteForceGuard, func(), error) {
	maxAttempts, err := strconv.Atoi(cfg.MaxAttempts)
	if err != nil || maxAttempts <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid LOGIN_MAX_ATTEMPTS", service.ErrMisconfigured)
	}
	lockDuration, err := parseDuration("LOGIN_LOCK_DURATION", cfg.LockDuration)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case "memory", "":
		return service.NewMemoryBruteForceGuard(maxAttempts, lockDuration), func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(redisCfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid REDIS_URL", service.ErrMisconfigured)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return service.NewRedisBruteForceGuard(client, maxAttempts, lockDuration), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown BRUTE_FORCE_BACKEND %q", service.ErrMisconfigured, cfg.Backend)
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrMisconfigured, name)
	}
	return d, nil
}

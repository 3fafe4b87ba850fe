package setup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/manabi-dev/manabi/internal/config"
	"github.com/manabi-dev/manabi/internal/handler"
	"github.com/manabi-dev/manabi/internal/middleware"
	"github.com/manabi-dev/manabi/internal/middleware/ratelimit"
	"github.com/manabi-dev/manabi/internal/service"
	"github.com/manabi-dev/manabi/internal/session"
	"github.com/manabi-dev/manabi/internal/storage/pg"
	"github.com/manabi-dev/manabi/internal/token"
	"github.com/manabi-dev/manabi/internal/utils/email"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Redis          *redis.Client
	Registry       *session.Registry
	Tokens         *token.Service
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth

	// AuthLimiter is nil when rate limiting is disabled by config.
	AuthLimiter *ratelimit.Limiter
}

// SetupDependencies initializes all dependencies required for the
// application. The redis client backing the session registry is constructed
// here, connected before first use, and closed via Close at shutdown.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	registryTimeout := time.Duration(cfg.Public.RegistryTimeoutSeconds) * time.Second
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Private.Redis.Addr,
		Password: cfg.Private.Redis.Password,
		DB:       cfg.Private.Redis.Db,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		storage.Cleanup()
		return nil, err
	}

	registry := session.New(rdb, registryTimeout)
	tokens := token.New(
		cfg.Private.AccessTokenSecret,
		cfg.Private.RefreshTokenSecret,
		token.ParseExpiry(cfg.Public.AccessTokenTTL),
		token.ParseExpiry(cfg.Public.RefreshTokenTTL),
		registry,
	)
	mail := email.New(&cfg.Private.Email)

	auth := service.NewAuth(
		storage, registry, tokens, mail,
		cfg.Public.ClientURL,
		token.ParseExpiry(cfg.Public.VerificationCodeTTL),
		token.ParseExpiry(cfg.Public.ResetTokenTTL),
	)

	h := handler.New(auth, auth, cfg)
	authMw := middleware.NewAuth(tokens, registry, storage)

	var authLimiter *ratelimit.Limiter
	if cfg.Public.AuthRatePerMinute > 0 {
		burst := cfg.Public.AuthRateBurst
		if burst < 1 {
			burst = 1
		}
		authLimiter = ratelimit.New(float64(cfg.Public.AuthRatePerMinute)/60, float64(burst), time.Hour)
	}

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Redis:          rdb,
		Registry:       registry,
		Tokens:         tokens,
		Handler:        h,
		AuthMiddleware: authMw,
		AuthLimiter:    authLimiter,
	}, nil
}

// Close releases the database pool and the redis client.
func (d *Dependencies) Close() {
	if d.Storage != nil {
		d.Storage.Cleanup()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.AuthLimiter != nil {
		d.AuthLimiter.Stop()
	}
}

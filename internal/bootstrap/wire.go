package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/config"
	"github.com/classhub/identity-service/internal/domain"
	"github.com/classhub/identity-service/internal/infrastructure/db/postgres"
	"github.com/classhub/identity-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/classhub/identity-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/classhub/identity-service/internal/infrastructure/redis"
	"github.com/classhub/identity-service/internal/infrastructure/security"
	"github.com/classhub/identity-service/internal/logger"
	http_handlers "github.com/classhub/identity-service/internal/transport/http/handlers"
	"github.com/classhub/identity-service/internal/transport/http/middleware"
	"github.com/classhub/identity-service/internal/transport/http/response"
	"github.com/classhub/identity-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing.
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(addr string) (DBCloser, error)

	NewRedis func(addr, password string, db int) RedisClient

	NewPublisher func(rabbitURL string) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type DBCloser interface {
	Close() error
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

type Publisher interface{}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) db
	db, err := deps.NewDB(cfg.DBAddr)
	if err != nil {
		return nil, nil, err
	}

	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	sqlDB, ok := db.(*sql.DB)
	if !ok {
		runCleanup(cleanupFns)
		return nil, nil, errors.New("bootstrap: NewDB did not return *sql.DB")
	}

	// 2) schema + repos
	if err := postgres.EnsureSchema(context.Background(), sqlDB); err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	userRepo := postgres.NewUserRepo(sqlDB)
	tokenRepo := postgres.NewTokenRepo(sqlDB)

	// 3) redis (best-effort; rate limiting degrades to fail-open)
	var redisCli RedisClient
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, "", 0)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 4) publisher
	var pub identity.EventPublisher = memory.NewNoopPublisher()
	if deps.NewPublisher != nil && cfg.RabbitURL != "" {
		p, err := deps.NewPublisher(cfg.RabbitURL)
		if err != nil {
			if cfg.Env == "dev" {
				logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			} else {
				runCleanup(cleanupFns)
				return nil, nil, err
			}
		} else {
			ep, ok := p.(identity.EventPublisher)
			if !ok {
				runCleanup(cleanupFns)
				return nil, nil, errors.New("bootstrap: NewPublisher did not return an event publisher")
			}
			pub = ep
			if c, ok := p.(interface{ Close() error }); ok {
				cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			}
		}
	}

	// 5) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	hasher := security.NewBcryptHasher(12)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)

	// reserved super-admin account
	postgres.SeedSuperAdmin(context.Background(), userRepo, hasher, cfg.SuperAdminPassword)

	// 6) service
	svc := identity.NewService(
		userRepo,
		tokenRepo,
		hasher,
		signer,
		pub,
		identity.Config{
			AccessTTL:     cfg.AccessTokenTTL,
			RefreshTTL:    cfg.RefreshTokenTTL,
			LockThreshold: cfg.LockThreshold,
			LockDuration:  cfg.LockDuration,
		},
	)

	svc = svc.WithAudit(func(action string, fields map[string]string) {
		evt := logger.Logger.Info().
			Bool("audit", true).
			Str("action", action)
		for k, v := range fields {
			evt = evt.Str(k, v)
		}
		evt.Msg("audit")
	})

	// 7) background sweep of expired refresh tokens
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	cleanupFns = append(cleanupFns, stopSweep)
	go sweepExpiredTokens(sweepCtx, svc, cfg.TokenSweepInterval)

	// 8) handlers + middleware
	authH := http_handlers.NewAuthHandler(svc)
	adminH := http_handlers.NewAdminHandler(svc)
	healthH := http_handlers.NewHealthHandler(sqlDB)

	authMW := middleware.Auth(signer, response.WriteError)
	adminMW := middleware.RequireAtLeast(string(domain.RoleAdmin), response.WriteError)

	var fwLimiter *redis.FixedWindowLimiter
	if redisCli != nil {
		if c, ok := redisCli.(*redis.Client); ok {
			fwLimiter = redis.NewFixedWindowLimiter(c)
		}
	}

	rl := func(key string, limit int, window time.Duration) func(http.Handler) http.Handler {
		if fwLimiter == nil || limit <= 0 {
			return nil
		}
		return middleware.RateLimitFixedWindow(
			fwLimiter,
			middleware.FixedWindowConfig{
				RouteKey: key,
				Limit:    limit,
				Window:   window,
			},
			response.WriteError,
		)
	}

	// 9) router
	mux, err := deps.NewRouter(router.Deps{
		Health: healthH,
		Auth:   authH,
		Admin:  adminH,

		RequestIDMW: middleware.RequestID,
		AuthMW:      authMW,
		AdminMW:     adminMW,

		LoginRL:    rl("auth.login", cfg.LoginRateLimit, time.Minute),
		RegisterRL: rl("auth.register", cfg.RegisterRateLimit, time.Minute),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 10) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

// sweepExpiredTokens deletes expired refresh-token rows on a fixed interval.
func sweepExpiredTokens(ctx context.Context, svc *identity.Service, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log := logger.With("token_sweeper")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepExpiredTokens(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("expired refresh tokens swept")
			}
		}
	}
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB: func(addr string) (DBCloser, error) {
			return config.NewDB(addr)
		},
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url)
		},
		NewRouter: func(d router.Deps) (http.Handler, error) {
			return router.New(d)
		},
	}
}

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

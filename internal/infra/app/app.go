package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/config"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/database"
	kafkainfra "github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/kafka"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/logger"
	redisinfra "github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/redis"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/security"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/infra/telemetry"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/repository/memory"
	postgresrepo "github.com/azo221017m-hub/webposcrumen-sub000/internal/repository/postgres"
	redisrepo "github.com/azo221017m-hub/webposcrumen-sub000/internal/repository/redis"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/transport/http/middleware"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/transport/http/routes"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/usecase"
)

// Version is stamped at build time.
var Version = "dev"

// Application owns the HTTP server and every resource it was wired with.
type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	kafka   *kafkainfra.Producer
	tracing *telemetry.TracerProvider
}

type accountBackend struct {
	accounts port.AccountStore
	withinTx port.AttemptTxFunc
}

// New wires configuration into a ready-to-run Application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newApplication(ctx, cfg, log, prometheus.NewRegistry())
}

func newApplication(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, registry *prometheus.Registry) (_ *Application, err error) {
	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.WithoutCancel(ctx))
		}
	}()

	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, Version, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	backend, err := a.openAccountBackend(ctx)
	if err != nil {
		return nil, err
	}

	verifier, err := security.NewCredentialVerifier(security.CredentialOptions{
		Scheme:     security.Scheme(cfg.Credentials.Scheme),
		BcryptCost: cfg.Credentials.BcryptCost,
		Argon2: security.Argon2Config{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init credential verifier: %w", err)
	}

	loginMetrics, err := telemetry.NewLoginMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init login metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	var rateLimiter *middleware.RateLimiter
	var cache routes.CacheChecker
	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		cache = a.redis

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimiter = middleware.NewRateLimiter(redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
			TTL:       2 * window,
		}), log)
	} else if cfg.RateLimit.Enabled {
		log.Warn("rate limiting requires redis, login throttling disabled")
	}

	loginService := usecase.NewLoginService(backend.accounts, backend.withinTx, verifier, domain.NewLockoutPolicy(cfg.Lockout.Threshold)).
		WithLogger(log).
		WithEventPublisher(a.eventPublisher()).
		WithMetrics(loginMetrics).
		WithTracer(a.tracing.Tracer("pos-auth/usecase"))

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Tracer:      a.tracing.Tracer("pos-auth/http"),
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Login:       loginService,
		Cache:       cache,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	a.engine = routes.Register(deps)

	return a, nil
}

func (a *Application) openAccountBackend(ctx context.Context) (accountBackend, error) {
	switch a.cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		seeds, err := config.LoadSeedAccounts(a.cfg.Storage.SeedFile)
		if err != nil {
			return accountBackend{}, err
		}
		for _, seed := range seeds {
			if _, err := store.SeedAccount(domain.Account{
				Alias:      seed.Alias,
				Credential: seed.Credential,
				Status:     domain.AccountStatus(seed.Status),
				BusinessID: seed.BusinessID,
				RoleID:     seed.RoleID,
			}); err != nil {
				return accountBackend{}, fmt.Errorf("seed account %q: %w", logger.MaskAlias(seed.Alias), err)
			}
		}
		a.logger.Warn("using in-memory account store", zap.Int("seeded_accounts", len(seeds)))
		return accountBackend{accounts: store.Accounts(), withinTx: store.WithinAttemptTx}, nil

	default:
		pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return accountBackend{}, fmt.Errorf("init postgres: %w", err)
		}
		a.pool = pool

		if a.cfg.Postgres.AutoMigrate {
			if err := database.Migrate(ctx, pool, a.logger); err != nil {
				return accountBackend{}, fmt.Errorf("migrate postgres: %w", err)
			}
		}

		repos := postgresrepo.NewRepositories(pool)
		return accountBackend{accounts: repos.Accounts, withinTx: repos.Tx.WithinAttemptTx}, nil
	}
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.kafka = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Handler returns the HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down and releases resources.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.release(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, strconv.Itoa(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting POS auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("version", Version),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})

	return g.Wait()
}

func (a *Application) release(ctx context.Context) {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
	}
}

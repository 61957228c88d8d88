package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/config"
	"task-tracker/internal/database"
	"task-tracker/internal/handlers"
	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/repositories"
	"task-tracker/internal/services"
	"task-tracker/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type application struct {
	cfg     *config.Config
	log     *slog.Logger
	router  *gin.Engine
	pool    *database.DatabasePool
	redis   *redis.Client
	queue   *worker.JobQueue
	worker  *worker.Worker
	jobs    *worker.Handlers
	limiter *middleware.RateLimiter
}

func buildApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	app := &application{cfg: cfg, log: log, pool: pool}

	users := repositories.NewUserRepository(pool.DB)
	tasks := repositories.NewTaskRepository(pool.DB)
	app.jobs = worker.NewHandlers(users, tasks, log)

	tokens := services.NewTokenManager(users, services.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	authenticator := services.NewAuthenticator(tokens, users, log)

	monitor := monitoring.NewRegistry()
	monitor.RegisterHealthCheck("database", func(ctx context.Context) error { return pool.Health() })
	monitor.RegisterStats("database", pool.Stats)

	var purges services.PurgeScheduler
	if cfg.Redis.Enabled {
		app.redis = cache.NewRedisClient(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		app.queue = worker.NewJobQueue(app.redis)
		app.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  app.redis,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
			Logger:       log,
		})
		app.jobs.Register(app.worker)
		purges = app.queue
	}

	var (
		directory services.UserDirectory  = services.NewUserDirectory(users, services.NewCredentialStore(cfg.Auth.BCryptCost), tokens, purges, log)
		registry  services.TaskRegistry   = services.NewTaskRegistry(tasks)
		avatars   services.AvatarPipeline = services.NewAvatarPipeline(users, services.AvatarConfig{MaxBytes: cfg.Avatar.MaxBytes, Size: cfg.Avatar.Size})
	)

	if app.redis != nil {
		redisCache := cache.NewRedisCache(app.redis)
		guarded := cache.NewGuardedCache(redisCache, nil, nil)
		fenced := cache.NewFencedCache(guarded)

		directory = services.NewCachedUserDirectory(directory, fenced, log)
		registry = services.NewCachedTaskRegistry(registry, fenced, log)
		avatars = services.NewCachedAvatarPipeline(avatars, fenced, cfg.Avatar.CacheTTL, log)

		monitor.RegisterHealthCheck("redis", redisCache.Health)
		monitor.RegisterStats("cache", func() map[string]interface{} {
			stats := guarded.Stats()
			stats["pending_invalidations"] = fenced.Pending()
			return stats
		})
		monitor.RegisterStats("redis", redisCache.Stats)
	}

	if cfg.RateLimit.Enabled {
		app.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.BurstSize,
			CleanupInterval:   cfg.RateLimit.CleanupInterval,
		})
	}

	app.router = handlers.NewRouter(handlers.RouterDeps{
		Users:          directory,
		Tasks:          registry,
		Avatars:        avatars,
		Authenticator:  authenticator,
		RateLimiter:    app.limiter,
		Monitor:        monitor,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxAvatarBytes: cfg.Avatar.MaxBytes,
	})

	return app, nil
}

// startBackground launches the worker and the periodic jobs. They stop when
// ctx is done.
func (a *application) startBackground(ctx context.Context) {
	if a.limiter != nil {
		go a.limiter.Run(ctx)
	}

	if a.worker != nil {
		a.worker.Start(a.cfg.Worker.Concurrency)
	}

	// non-expiring tokens never need pruning
	if a.cfg.Auth.TokenTTL <= 0 {
		return
	}
	go worker.RunEvery(ctx, a.cfg.Worker.CleanupInterval, a.cleanupTokens)
}

func (a *application) cleanupTokens(ctx context.Context) {
	if a.queue != nil {
		if err := a.queue.Enqueue(ctx, worker.DefaultQueue, worker.JobTypeTokenCleanup, nil); err != nil {
			a.log.Warn("failed to enqueue token cleanup", "error", err)
		}
		return
	}
	if err := a.jobs.CleanupTokens(ctx, nil); err != nil {
		a.log.Warn("token cleanup failed", "error", err)
	}
}

func (a *application) close() {
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", "error", err)
		}
	}
	if err := a.pool.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	app.startBackground(ctx)

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr, "environment", cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

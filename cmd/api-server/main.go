package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/advisor-booking-engine/internal/api"
	"github.com/hackgods/advisor-booking-engine/internal/appointment"
	"github.com/hackgods/advisor-booking-engine/internal/config"
	"github.com/hackgods/advisor-booking-engine/internal/db"
	"github.com/hackgods/advisor-booking-engine/internal/logging"
	"github.com/hackgods/advisor-booking-engine/internal/observability/metrics"
	redisclient "github.com/hackgods/advisor-booking-engine/internal/redis"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.MustNewLogger(cfg.Env, cfg.LogLevel).Named("api-server")
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, logger)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	if cfg.AutoMigrate {
		migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, time.Minute)
		err := db.Migrate(migrateCtx, pgPool, logger)
		cancelMigrate()
		if err != nil {
			logger.Fatal("migration error", zap.Error(err))
		}
	}

	var (
		locker appointment.Locker
		rdb    *redis.Client
	)
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err = redisclient.Connect(redisCtx, cfg)
		cancelRedis()
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		locker = redisclient.NewRedisAdvisorLocker(rdb, cfg.LockTTL, cfg.LockWait)
	case config.LockBackendLocal:
		logger.Warn("using in-process advisor lock, run a single replica only")
		locker = appointment.NewLocalLocker(cfg.LockWait)
	}

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgAdvisorDirectory(pgPool),
		locker,
		cfg,
		logger,
	).WithMetrics(metrics.NewSchedulerMetrics(nil))

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			PgPool:  pgPool,
			Redis:   rdb,
			Env:     cfg.Env,
			Version: version,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("api-server stopped")
}

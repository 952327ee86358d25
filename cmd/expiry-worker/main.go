package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/advisor-booking-engine/internal/appointment"
	"github.com/hackgods/advisor-booking-engine/internal/config"
	"github.com/hackgods/advisor-booking-engine/internal/db"
	"github.com/hackgods/advisor-booking-engine/internal/logging"
	"github.com/hackgods/advisor-booking-engine/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.MustNewLogger(cfg.Env, cfg.LogLevel).Named("expiry-worker")
	defer func() { _ = logger.Sync() }()

	logger.Info("expiry worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.StaleRequestGrace),
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

	// the sweeper only changes status and never takes the advisor lock
	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgAdvisorDirectory(pgPool),
		appointment.NewLocalLocker(cfg.LockWait),
		cfg,
		logger,
	).WithMetrics(metrics.NewSchedulerMetrics(nil))

	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireStaleRequests(runCtx)
	if err != nil {
		logger.Error("expiry run failed", zap.Int("expired", n), zap.Error(err))
		return
	}
	logger.Info("expiry run complete", zap.Int("expired", n), zap.Duration("took", time.Since(start)))
}

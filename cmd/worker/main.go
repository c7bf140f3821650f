package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fleetdesk/fleetdesk/internal/app"
	"github.com/fleetdesk/fleetdesk/internal/dispatch"
	"github.com/fleetdesk/fleetdesk/internal/platform/cache"
	"github.com/fleetdesk/fleetdesk/internal/platform/db"
	"github.com/fleetdesk/fleetdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable for summary cache", slog.Any("error", err))
		redisClient = nil
	}

	repo := dispatch.NewRepository(pool)
	summaryCache := dispatch.NewSummaryCache(redisClient, cfg.SummaryTTL)
	svc := dispatch.NewService(repo, summaryCache, logger, cfg.DepotLocation)

	sweepTask, err := jobs.NewSummaryRefreshTask(jobs.SummaryRefreshPayload{Sweep: true})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSummaryRefresh, Handler: jobs.NewSummaryRefreshHandler(svc, logger)},
		},
		Cron: []jobs.CronRegistration{
			// Nightly sweep over yesterday's completions.
			{Spec: "30 1 * * *", Task: sweepTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

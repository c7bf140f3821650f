package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fleetdesk/fleetdesk/internal/app"
	"github.com/fleetdesk/fleetdesk/internal/observability"
	"github.com/fleetdesk/fleetdesk/internal/platform/cache"
	"github.com/fleetdesk/fleetdesk/internal/platform/db"
	"github.com/fleetdesk/fleetdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	// Summary caching degrades gracefully when Redis is unreachable.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summaries recompute every read", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	// Catch up on aggregates that may have missed their re-freeze across a
	// restart. Best effort; the nightly sweep covers the rest.
	if redisClient != nil {
		jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if _, err := jobsClient.EnqueueSummaryRefresh(ctx, jobs.SummaryRefreshPayload{Sweep: true}); err != nil {
			logger.Warn("enqueue startup summary sweep", slog.Any("error", err))
		}
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}

	result := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: observability.NewMetrics(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      result.Handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

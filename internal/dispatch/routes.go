// Package dispatch implements the delivery lifecycle and reconciliation
// engine: creation, lifecycle transitions, stop traversal and the running
// totals shown to the operator.
package dispatch

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// MountRoutes wires the dispatch domain routes.
func MountRoutes(r chi.Router, pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, depot string, summaryTTL time.Duration) *Service {
	repo := NewRepository(pool)
	cache := NewSummaryCache(rdb, summaryTTL)
	svc := NewService(repo, cache, logger, depot)
	handler := NewHandler(logger, svc)
	handler.MountRoutes(r)
	return svc
}

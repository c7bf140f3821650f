package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// sweepConcurrency bounds parallel refreshes during a sweep.
const sweepConcurrency = 4

// DispatchService is the slice of the dispatch service the refresh job uses.
type DispatchService interface {
	RefreshSummary(ctx context.Context, deliveryID int64) error
	CompletedSince(ctx context.Context, since time.Time) ([]int64, error)
}

// NewSummaryRefreshHandler returns the handler for TaskSummaryRefresh tasks.
func NewSummaryRefreshHandler(svc DispatchService, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SummaryRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		if !payload.Sweep {
			if payload.DeliveryID <= 0 {
				return asynq.SkipRetry
			}
			return svc.RefreshSummary(ctx, payload.DeliveryID)
		}

		since := payload.Since
		if since.IsZero() {
			since = time.Now().UTC().Add(-24 * time.Hour)
		}
		ids, err := svc.CompletedSince(ctx, since)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(sweepConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				if err := svc.RefreshSummary(ctx, id); err != nil {
					logger.Warn("summary refresh failed", slog.Int64("delivery_id", id), slog.Any("error", err))
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("summary sweep done", slog.Int("deliveries", len(ids)))
		return nil
	}
}

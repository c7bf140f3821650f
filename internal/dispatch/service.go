package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store is the persistence surface the service depends on.
type Store interface {
	GetDelivery(ctx context.Context, id int64) (*Delivery, error)
	GetDeliveryByNumber(ctx context.Context, number string) (*Delivery, error)
	GetStop(ctx context.Context, id int64) (*Stop, error)
	ListDeliveries(ctx context.Context, req ListRequest) ([]WithDetails, int, error)
	ListCompletedIDs(ctx context.Context, since time.Time) ([]int64, error)
	GenerateDeliveryNumber(ctx context.Context, scheduledDate time.Time) (string, error)
	CompleteStop(ctx context.Context, stopID int64, req StopCompletion, completedAt time.Time) (bool, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// MetricsRecorder receives domain events worth counting. Implementations must
// tolerate being called from request handlers.
type MetricsRecorder interface {
	CountStopCompletion(status string)
}

// Service provides business logic for the delivery lifecycle.
type Service struct {
	store   Store
	cache   *SummaryCache
	logger  *slog.Logger
	depot   string
	metrics MetricsRecorder
	now     func() time.Time
}

// NewService constructs a dispatch service. depot is the default start
// location used when the operator provides none.
func NewService(store Store, cache *SummaryCache, logger *slog.Logger, depot string) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		depot:  depot,
		now:    time.Now,
	}
}

// WithMetrics attaches a metrics recorder. Optional; a service without one
// simply skips counting.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	return nil
}

// ============================================================================
// CREATION
// ============================================================================

// Create persists a delivery with its manifest and stops in one batch. This
// is the single call behind the creation wizard's final submit: it either
// fully applies or fully fails, leaving nothing partial behind.
func (s *Service) Create(ctx context.Context, req CreateDeliveryRequest) (*DeliveryResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	for i, p := range req.Products {
		if !p.LoadedQuantity.IsPositive() {
			return nil, validationErrorf("products", "row %d: loaded quantity must be positive", i+1)
		}
	}
	seen := make(map[int]struct{}, len(req.Stops))
	for i, st := range req.Stops {
		if st.CustomerName == "" {
			return nil, validationErrorf("stops", "row %d: customer name is required", i+1)
		}
		if st.PlannedBoxes.IsNegative() || st.PlannedAmount.IsNegative() {
			return nil, validationErrorf("stops", "row %d: planned figures must not be negative", i+1)
		}
		if _, dup := seen[st.StopSequence]; dup {
			return nil, validationErrorf("stops", "row %d: duplicate stop sequence %d", i+1, st.StopSequence)
		}
		seen[st.StopSequence] = struct{}{}
	}

	number, err := s.store.GenerateDeliveryNumber(ctx, req.ScheduledDate)
	if err != nil {
		return nil, fmt.Errorf("generate delivery number: %w", err)
	}

	var deliveryID int64
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateDelivery(ctx, Delivery{
			DeliveryNumber: number,
			EmployeeID:     req.EmployeeID,
			VehicleID:      req.VehicleID,
			RouteID:        req.RouteID,
			ScheduledDate:  req.ScheduledDate,
			ScheduledTime:  req.ScheduledTime,
			Status:         StatusScheduled,
			Notes:          req.Notes,
		})
		if err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		deliveryID = id

		for _, p := range req.Products {
			if _, err := tx.InsertManifestLine(ctx, ManifestLine{
				DeliveryID:     deliveryID,
				ProductID:      p.ProductID,
				LoadedQuantity: p.LoadedQuantity,
				UnitPrice:      p.UnitPrice,
				Notes:          p.Notes,
			}); err != nil {
				return fmt.Errorf("insert manifest line: %w", err)
			}
		}

		for _, st := range req.Stops {
			if _, err := tx.InsertStop(ctx, Stop{
				DeliveryID:      deliveryID,
				StopSequence:    st.StopSequence,
				CustomerName:    st.CustomerName,
				CustomerAddress: st.CustomerAddress,
				CustomerPhone:   st.CustomerPhone,
				PlannedBoxes:    st.PlannedBoxes,
				PlannedAmount:   st.PlannedAmount,
				Status:          StopPending,
			}); err != nil {
				return fmt.Errorf("insert stop: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, deliveryID)
}

// ============================================================================
// READS
// ============================================================================

// Get retrieves a delivery with a freshly reconciled summary.
func (s *Service) Get(ctx context.Context, id int64) (*DeliveryResponse, error) {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DeliveryResponse{Delivery: *d, Summary: s.summarize(ctx, d)}, nil
}

// summarize recomputes the reconciliation view, reading through the cache.
func (s *Service) summarize(ctx context.Context, d *Delivery) Summary {
	if cached, ok := s.cache.Get(ctx, d.ID); ok {
		return *cached
	}
	sum := Reconcile(d.Products, d.Stops)
	s.cache.Set(ctx, d.ID, sum)
	return sum
}

// GetByNumber retrieves a delivery by its human-readable number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*DeliveryResponse, error) {
	d, err := s.store.GetDeliveryByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return &DeliveryResponse{Delivery: *d, Summary: s.summarize(ctx, d)}, nil
}

// List returns a filtered, paginated delivery listing.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	items, total, err := s.store.ListDeliveries(ctx, req)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	return &ListResponse{Deliveries: items, Total: total, Limit: limit, Offset: req.Offset}, nil
}

// NextStop resolves the next pending stop for a delivery. Returns
// ErrNoStopsRemaining once the route is exhausted.
func (s *Service) NextStop(ctx context.Context, deliveryID int64) (*Stop, error) {
	d, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return NextPendingStop(d.Stops)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start moves a scheduled delivery to in_progress and records the start
// snapshot. The start location falls back to the configured depot.
func (s *Service) Start(ctx context.Context, id int64, req StartRequest) (*DeliveryResponse, error) {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(d.Status, ActionStart)
	if err != nil {
		return nil, err
	}

	location := req.Location
	if location == "" {
		location = s.depot
	}

	startedAt := s.now().UTC()
	updates := map[string]interface{}{
		"started_at":     startedAt,
		"start_location": location,
	}
	if req.OdometerReading != nil {
		updates["start_odometer"] = *req.OdometerReading
	}
	if req.FuelLevel != nil {
		updates["start_fuel"] = *req.FuelLevel
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDeliveryStatus(ctx, id, next, updates); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, newAuditEntry(id, ActionStart, req.ActorID, location))
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info("delivery started", slog.Int64("delivery_id", id), slog.String("number", d.DeliveryNumber))
	return s.Get(ctx, id)
}

// Complete reconciles the manifest from the operator-entered per-product
// totals, freezes the aggregate fields and moves the delivery to completed.
func (s *Service) Complete(ctx context.Context, id int64, req CompleteRequest) (*DeliveryResponse, error) {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(d.Status, ActionComplete)
	if err != nil {
		return nil, err
	}

	lines, err := ApplyDelivered(d.Products, req.Products)
	if err != nil {
		return nil, err
	}

	loaded := TotalLoaded(lines)
	delivered := TotalDelivered(lines)
	cash := Reconcile(lines, d.Stops)

	completedAt := s.now().UTC()
	updates := map[string]interface{}{
		"completed_at":          completedAt,
		"total_loaded_boxes":    loaded,
		"total_delivered_boxes": delivered,
		"total_balance_boxes":   loaded.Sub(delivered),
		"total_amount":          cash.PlannedAmount,
		"collected_amount":      cash.CollectedAmount,
		"total_pending_amount":  cash.PendingAmount,
		"delivery_efficiency":   efficiencyPercent(delivered, loaded),
	}
	if req.OdometerReading != nil {
		updates["end_odometer"] = *req.OdometerReading
	}
	if req.FuelLevel != nil {
		updates["end_fuel"] = *req.FuelLevel
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i := range lines {
			if !lines[i].DeliveredQuantity.Equal(d.Products[i].DeliveredQuantity) {
				if err := tx.UpdateManifestDelivered(ctx, lines[i].ID, lines[i].DeliveredQuantity); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateDeliveryStatus(ctx, id, next, updates); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, newAuditEntry(id, ActionComplete, req.ActorID, ""))
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info("delivery completed",
		slog.Int64("delivery_id", id),
		slog.String("delivered_boxes", delivered.String()),
		slog.String("collected", cash.CollectedAmount.String()))
	return s.Get(ctx, id)
}

// Cancel aborts a delivery from scheduled or in_progress. Ledgers are left
// untouched; the reason is recorded for audit.
func (s *Service) Cancel(ctx context.Context, id int64, req CancelRequest) (*DeliveryResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, validationErrorf("reason", "cancellation reason is required")
	}

	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(d.Status, ActionCancel)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDeliveryStatus(ctx, id, next, map[string]interface{}{
			"cancel_reason": req.Reason,
		}); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, newAuditEntry(id, ActionCancel, req.ActorID, req.Reason))
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info("delivery cancelled", slog.Int64("delivery_id", id), slog.String("reason", req.Reason))
	return s.Get(ctx, id)
}

// ============================================================================
// STOP COMPLETION
// ============================================================================

// CompleteStop records the actuals for one stop and returns the updated stop
// together with the recomputed delivery summary, so the operator display
// needs no second round trip. A stop leaves pending exactly once: the update
// is guarded on status in the store, and a lost race surfaces as
// InvalidStateError with the first completion's figures intact.
func (s *Service) CompleteStop(ctx context.Context, stopID int64, req StopCompletion) (*StopCompletionResponse, error) {
	stop, err := s.store.GetStop(ctx, stopID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDelivery(ctx, stop.DeliveryID)
	if err != nil {
		return nil, err
	}
	if err := ValidateStopCompletion(d.Status, *stop, req); err != nil {
		return nil, err
	}

	applied, err := s.store.CompleteStop(ctx, stopID, req, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race against another completion of the same stop.
		current, err := s.store.GetStop(ctx, stopID)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidStateError{StopID: stopID, Status: current.Status}
	}

	s.cache.Invalidate(ctx, d.ID)

	fresh, err := s.store.GetDelivery(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	sum := Reconcile(fresh.Products, fresh.Stops)
	s.cache.Set(ctx, d.ID, sum)

	var updated *Stop
	for i := range fresh.Stops {
		if fresh.Stops[i].ID == stopID {
			updated = &fresh.Stops[i]
			break
		}
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	if s.metrics != nil {
		s.metrics.CountStopCompletion(string(updated.Status))
	}
	s.logger.Info("stop completed",
		slog.Int64("delivery_id", d.ID),
		slog.Int64("stop_id", stopID),
		slog.String("status", string(updated.Status)))
	return &StopCompletionResponse{Stop: *updated, Summary: sum}, nil
}

// ============================================================================
// MAINTENANCE
// ============================================================================

// RefreshSummary re-freezes the cached aggregates of a completed delivery
// from its stop and manifest records. Used by the background sweep to heal
// any drift between the frozen columns and the source rows.
func (s *Service) RefreshSummary(ctx context.Context, id int64) error {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != StatusCompleted {
		s.cache.Invalidate(ctx, id)
		return nil
	}

	loaded := TotalLoaded(d.Products)
	delivered := TotalDelivered(d.Products)
	cash := Reconcile(d.Products, d.Stops)

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateDeliveryStatus(ctx, id, d.Status, map[string]interface{}{
			"total_loaded_boxes":    loaded,
			"total_delivered_boxes": delivered,
			"total_balance_boxes":   loaded.Sub(delivered),
			"total_amount":          cash.PlannedAmount,
			"collected_amount":      cash.CollectedAmount,
			"total_pending_amount":  cash.PendingAmount,
			"delivery_efficiency":   efficiencyPercent(delivered, loaded),
		})
	})
	if err != nil {
		return err
	}
	s.cache.Set(ctx, id, cash)
	return nil
}

// CompletedSince exposes completed delivery IDs for the refresh sweep.
func (s *Service) CompletedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return s.store.ListCompletedIDs(ctx, since)
}

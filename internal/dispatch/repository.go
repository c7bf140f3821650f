package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for dispatch operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that run inside a transaction.
type TxRepository interface {
	CreateDelivery(ctx context.Context, d Delivery) (int64, error)
	InsertManifestLine(ctx context.Context, line ManifestLine) (int64, error)
	InsertStop(ctx context.Context, stop Stop) (int64, error)
	UpdateDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus, updates map[string]interface{}) error
	UpdateManifestDelivered(ctx context.Context, lineID int64, delivered decimal.Decimal) error
	InsertAuditEntry(ctx context.Context, entry AuditEntry) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return transportErr("begin tx", err)
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return transportErr("commit tx", err)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

const deliveryColumns = `id, delivery_number, employee_id, vehicle_id, route_id,
       scheduled_date, scheduled_time, status,
       start_odometer, start_fuel, start_location, end_odometer, end_fuel,
       total_loaded_boxes, total_delivered_boxes, total_balance_boxes,
       total_amount, collected_amount, total_pending_amount, delivery_efficiency,
       notes, cancel_reason, started_at, completed_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(
		&d.ID, &d.DeliveryNumber, &d.EmployeeID, &d.VehicleID, &d.RouteID,
		&d.ScheduledDate, &d.ScheduledTime, &d.Status,
		&d.StartOdometer, &d.StartFuel, &d.StartLocation, &d.EndOdometer, &d.EndFuel,
		&d.TotalLoadedBoxes, &d.TotalDeliveredBoxes, &d.TotalBalanceBoxes,
		&d.TotalAmount, &d.CollectedAmount, &d.TotalPendingAmount, &d.DeliveryEfficiency,
		&d.Notes, &d.CancelReason, &d.StartedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, transportErr("scan delivery", err)
	}
	return &d, nil
}

// GetDelivery retrieves a delivery by ID with its manifest and stops.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if d.Products, err = r.getManifestLines(ctx, id); err != nil {
		return nil, err
	}
	if d.Stops, err = r.getStops(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDeliveryByNumber retrieves a delivery by its human-readable number.
func (r *Repository) GetDeliveryByNumber(ctx context.Context, number string) (*Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE delivery_number = $1`
	d, err := scanDelivery(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		return nil, err
	}

	if d.Products, err = r.getManifestLines(ctx, d.ID); err != nil {
		return nil, err
	}
	if d.Stops, err = r.getStops(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repository) getManifestLines(ctx context.Context, deliveryID int64) ([]ManifestLine, error) {
	query := `
		SELECT id, delivery_id, product_id, loaded_quantity, delivered_quantity,
		       unit_price, notes, created_at, updated_at
		FROM delivery_products
		WHERE delivery_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, transportErr("query manifest", err)
	}
	defer rows.Close()

	var lines []ManifestLine
	for rows.Next() {
		var l ManifestLine
		err := rows.Scan(
			&l.ID, &l.DeliveryID, &l.ProductID, &l.LoadedQuantity, &l.DeliveredQuantity,
			&l.UnitPrice, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, transportErr("scan manifest line", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const stopColumns = `id, delivery_id, stop_sequence, customer_name, customer_address,
       customer_phone, planned_boxes, planned_amount, delivered_boxes,
       collected_amount, status, notes, completed_at, created_at, updated_at`

func scanStop(row pgx.Row) (*Stop, error) {
	var s Stop
	err := row.Scan(
		&s.ID, &s.DeliveryID, &s.StopSequence, &s.CustomerName, &s.CustomerAddress,
		&s.CustomerPhone, &s.PlannedBoxes, &s.PlannedAmount, &s.DeliveredBoxes,
		&s.CollectedAmount, &s.Status, &s.Notes, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, transportErr("scan stop", err)
	}
	return &s, nil
}

func (r *Repository) getStops(ctx context.Context, deliveryID int64) ([]Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM delivery_stops WHERE delivery_id = $1 ORDER BY stop_sequence`
	rows, err := r.pool.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, transportErr("query stops", err)
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		err := rows.Scan(
			&s.ID, &s.DeliveryID, &s.StopSequence, &s.CustomerName, &s.CustomerAddress,
			&s.CustomerPhone, &s.PlannedBoxes, &s.PlannedAmount, &s.DeliveredBoxes,
			&s.CollectedAmount, &s.Status, &s.Notes, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, transportErr("scan stop", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// GetStop retrieves a single stop by ID.
func (r *Repository) GetStop(ctx context.Context, id int64) (*Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM delivery_stops WHERE id = $1`
	return scanStop(r.pool.QueryRow(ctx, query, id))
}

// ListDeliveries returns a filtered, paginated listing with per-delivery
// stop counters.
func (r *Repository) ListDeliveries(ctx context.Context, req ListRequest) ([]WithDetails, int, error) {
	var conditions []string
	var args []interface{}
	argN := 1

	addArg := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argN))
		args = append(args, value)
		argN++
	}

	if req.Status != nil {
		addArg("d.status = $%d", *req.Status)
	}
	if req.EmployeeID != nil {
		addArg("d.employee_id = $%d", *req.EmployeeID)
	}
	if req.VehicleID != nil {
		addArg("d.vehicle_id = $%d", *req.VehicleID)
	}
	if req.DateFrom != nil {
		addArg("d.scheduled_date >= $%d", *req.DateFrom)
	}
	if req.DateTo != nil {
		addArg("d.scheduled_date <= $%d", *req.DateTo)
	}
	if req.Search != nil {
		addArg("d.delivery_number ILIKE $%d", "%"+*req.Search+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM deliveries d " + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, transportErr("count deliveries", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT d.id, d.delivery_number, d.employee_id, d.vehicle_id, d.route_id,
		       d.scheduled_date, d.scheduled_time, d.status,
		       d.start_odometer, d.start_fuel, d.start_location, d.end_odometer, d.end_fuel,
		       d.total_loaded_boxes, d.total_delivered_boxes, d.total_balance_boxes,
		       d.total_amount, d.collected_amount, d.total_pending_amount, d.delivery_efficiency,
		       d.notes, d.cancel_reason, d.started_at, d.completed_at, d.created_at, d.updated_at,
		       COUNT(s.id) AS stop_count,
		       COUNT(s.id) FILTER (WHERE s.status <> 'pending') AS completed_stops,
		       COALESCE(SUM(p.loaded_quantity), 0) AS loaded_boxes
		FROM deliveries d
		LEFT JOIN delivery_stops s ON s.delivery_id = d.id
		LEFT JOIN delivery_products p ON p.delivery_id = d.id
		%s
		GROUP BY d.id
		ORDER BY d.scheduled_date DESC, d.id DESC
		LIMIT $%d OFFSET $%d
	`, where, argN, argN+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, transportErr("query deliveries", err)
	}
	defer rows.Close()

	var result []WithDetails
	for rows.Next() {
		var wd WithDetails
		err := rows.Scan(
			&wd.ID, &wd.DeliveryNumber, &wd.EmployeeID, &wd.VehicleID, &wd.RouteID,
			&wd.ScheduledDate, &wd.ScheduledTime, &wd.Status,
			&wd.StartOdometer, &wd.StartFuel, &wd.StartLocation, &wd.EndOdometer, &wd.EndFuel,
			&wd.TotalLoadedBoxes, &wd.TotalDeliveredBoxes, &wd.TotalBalanceBoxes,
			&wd.TotalAmount, &wd.CollectedAmount, &wd.TotalPendingAmount, &wd.DeliveryEfficiency,
			&wd.Notes, &wd.CancelReason, &wd.StartedAt, &wd.CompletedAt, &wd.CreatedAt, &wd.UpdatedAt,
			&wd.StopCount, &wd.CompletedStops, &wd.LoadedBoxes,
		)
		if err != nil {
			return nil, 0, transportErr("scan delivery row", err)
		}
		result = append(result, wd)
	}
	return result, total, rows.Err()
}

// GenerateDeliveryNumber produces the next DLV-YYYYMM-NNNN number for the
// scheduled month.
func (r *Repository) GenerateDeliveryNumber(ctx context.Context, scheduledDate time.Time) (string, error) {
	prefix := fmt.Sprintf("DLV-%s-", scheduledDate.Format("200601"))
	query := `
		SELECT COALESCE(MAX(SUBSTRING(delivery_number FROM LENGTH($1) + 1)::int), 0)
		FROM deliveries
		WHERE delivery_number LIKE $1 || '%'
	`
	var seq int
	if err := r.pool.QueryRow(ctx, query, prefix).Scan(&seq); err != nil {
		return "", transportErr("generate delivery number", err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// ListCompletedIDs returns delivery IDs completed since the cutoff. Used by
// the summary refresh job.
func (r *Repository) ListCompletedIDs(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM deliveries WHERE status = $1 AND completed_at >= $2 ORDER BY id`,
		StatusCompleted, since)
	if err != nil {
		return nil, transportErr("query completed ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, transportErr("scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ============================================================================
// STOP COMPLETION (single write, compare-and-swap on status)
// ============================================================================

// CompleteStop writes the actuals for one stop. The WHERE clause only
// matches stops still in pending, so a second completion of the same stop
// affects zero rows and the first call's figures stay intact.
func (r *Repository) CompleteStop(ctx context.Context, stopID int64, req StopCompletion, completedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_stops
		SET delivered_boxes = $2, collected_amount = $3, status = $4,
		    notes = COALESCE($5, notes), completed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, stopID, req.DeliveredBoxes, req.CollectedAmount, req.Status, req.Notes, completedAt)
	if err != nil {
		return false, transportErr("complete stop", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ============================================================================
// TRANSACTIONAL WRITES
// ============================================================================

func (t *txRepo) CreateDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO deliveries (
			delivery_number, employee_id, vehicle_id, route_id,
			scheduled_date, scheduled_time, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`, d.DeliveryNumber, d.EmployeeID, d.VehicleID, d.RouteID,
		d.ScheduledDate, d.ScheduledTime, d.Status, d.Notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, transportErr("insert delivery", err)
	}
	return id, nil
}

func (t *txRepo) InsertManifestLine(ctx context.Context, line ManifestLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO delivery_products (
			delivery_id, product_id, loaded_quantity, delivered_quantity,
			unit_price, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id
	`, line.DeliveryID, line.ProductID, line.LoadedQuantity, line.DeliveredQuantity,
		line.UnitPrice, line.Notes).Scan(&id)
	if err != nil {
		return 0, transportErr("insert manifest line", err)
	}
	return id, nil
}

func (t *txRepo) InsertStop(ctx context.Context, stop Stop) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO delivery_stops (
			delivery_id, stop_sequence, customer_name, customer_address,
			customer_phone, planned_boxes, planned_amount, delivered_boxes,
			collected_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, NOW(), NOW())
		RETURNING id
	`, stop.DeliveryID, stop.StopSequence, stop.CustomerName, stop.CustomerAddress,
		stop.CustomerPhone, stop.PlannedBoxes, stop.PlannedAmount, stop.Status).Scan(&id)
	if err != nil {
		return 0, transportErr("insert stop", err)
	}
	return id, nil
}

// allowed update columns for UpdateDeliveryStatus. Keeps the dynamic SET
// clause away from anything caller-controlled.
var deliveryUpdateColumns = map[string]struct{}{
	"start_odometer": {}, "start_fuel": {}, "start_location": {},
	"end_odometer": {}, "end_fuel": {}, "notes": {}, "cancel_reason": {},
	"started_at": {}, "completed_at": {},
	"total_loaded_boxes": {}, "total_delivered_boxes": {}, "total_balance_boxes": {},
	"total_amount": {}, "collected_amount": {}, "total_pending_amount": {},
	"delivery_efficiency": {},
}

func (t *txRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus, updates map[string]interface{}) error {
	set := []string{"status = $2", "updated_at = NOW()"}
	args := []interface{}{id, status}
	argN := 3
	for col, val := range updates {
		if _, ok := deliveryUpdateColumns[col]; !ok {
			return fmt.Errorf("dispatch: column %q not updatable", col)
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}

	tag, err := t.tx.Exec(ctx,
		fmt.Sprintf("UPDATE deliveries SET %s WHERE id = $1", strings.Join(set, ", ")),
		args...)
	if err != nil {
		return transportErr("update delivery status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateManifestDelivered(ctx context.Context, lineID int64, delivered decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE delivery_products SET delivered_quantity = $2, updated_at = NOW() WHERE id = $1`,
		lineID, delivered)
	if err != nil {
		return transportErr("update manifest line", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertAuditEntry(ctx context.Context, entry AuditEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO dispatch_audit_log (id, delivery_id, action, actor_id, note, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.DeliveryID, entry.Action, entry.ActorID, entry.Note, entry.At)
	if err != nil {
		return transportErr("insert audit entry", err)
	}
	return nil
}

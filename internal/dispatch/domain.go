package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// DELIVERY STATUS
// ============================================================================

// DeliveryStatus represents the lifecycle of a delivery run.
type DeliveryStatus string

const (
	StatusScheduled  DeliveryStatus = "scheduled"   // Created, not yet started
	StatusInProgress DeliveryStatus = "in_progress" // Operator is on the route
	StatusCompleted  DeliveryStatus = "completed"   // Route finished, aggregates frozen
	StatusCancelled  DeliveryStatus = "cancelled"   // Aborted, ledgers untouched
)

// IsValid checks if the status is a known delivery status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further lifecycle transition is permitted.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ============================================================================
// STOP STATUS
// ============================================================================

// StopStatus represents the state of a single customer stop.
type StopStatus string

const (
	StopPending   StopStatus = "pending"   // Not yet attempted
	StopDelivered StopStatus = "delivered" // Full drop, figures recorded
	StopPartial   StopStatus = "partial"   // Under-delivered, figures recorded
	StopFailed    StopStatus = "failed"    // Attempted but nothing delivered
	StopSkipped   StopStatus = "skipped"   // Deliberately passed over
)

// IsValid checks if the status is a known stop status.
func (s StopStatus) IsValid() bool {
	switch s {
	case StopPending, StopDelivered, StopPartial, StopFailed, StopSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the stop has left pending. A stop transitions
// out of pending exactly once and is immutable afterwards.
func (s StopStatus) IsTerminal() bool {
	return s.IsValid() && s != StopPending
}

// ============================================================================
// DELIVERY ENTITY
// ============================================================================

// Delivery represents one dispatch run: a vehicle, an operator, a loaded
// manifest and an ordered list of customer stops.
type Delivery struct {
	ID             int64          `json:"id" db:"id"`
	DeliveryNumber string         `json:"delivery_number" db:"delivery_number"`
	EmployeeID     int64          `json:"employee_id" db:"employee_id"`
	VehicleID      int64          `json:"vehicle_id" db:"vehicle_id"`
	RouteID        int64          `json:"route_id" db:"route_id"`
	ScheduledDate  time.Time      `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime  string         `json:"scheduled_time" db:"scheduled_time"`
	Status         DeliveryStatus `json:"status" db:"status"`

	// Start/end snapshots, informational only.
	StartOdometer *decimal.Decimal `json:"start_odometer,omitempty" db:"start_odometer"`
	StartFuel     *decimal.Decimal `json:"start_fuel,omitempty" db:"start_fuel"`
	StartLocation *string          `json:"start_location,omitempty" db:"start_location"`
	EndOdometer   *decimal.Decimal `json:"end_odometer,omitempty" db:"end_odometer"`
	EndFuel       *decimal.Decimal `json:"end_fuel,omitempty" db:"end_fuel"`

	// Aggregates frozen on completion. For in-progress deliveries the live
	// figures come from Reconcile, never from these columns.
	TotalLoadedBoxes    decimal.Decimal `json:"total_loaded_boxes" db:"total_loaded_boxes"`
	TotalDeliveredBoxes decimal.Decimal `json:"total_delivered_boxes" db:"total_delivered_boxes"`
	TotalBalanceBoxes   decimal.Decimal `json:"total_balance_boxes" db:"total_balance_boxes"`
	TotalAmount         decimal.Decimal `json:"total_amount" db:"total_amount"`
	CollectedAmount     decimal.Decimal `json:"collected_amount" db:"collected_amount"`
	TotalPendingAmount  decimal.Decimal `json:"total_pending_amount" db:"total_pending_amount"`
	DeliveryEfficiency  decimal.Decimal `json:"delivery_efficiency" db:"delivery_efficiency"`

	Notes        *string    `json:"notes,omitempty" db:"notes"`
	CancelReason *string    `json:"cancel_reason,omitempty" db:"cancel_reason"`
	StartedAt    *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	Products []ManifestLine `json:"products,omitempty" db:"-"`
	Stops    []Stop         `json:"stops,omitempty" db:"-"`
}

// ManifestLine represents one product loaded onto the delivery.
type ManifestLine struct {
	ID                int64            `json:"id" db:"id"`
	DeliveryID        int64            `json:"delivery_id" db:"delivery_id"`
	ProductID         int64            `json:"product_id" db:"product_id"`
	LoadedQuantity    decimal.Decimal  `json:"loaded_quantity" db:"loaded_quantity"`
	DeliveredQuantity decimal.Decimal  `json:"delivered_quantity" db:"delivered_quantity"`
	UnitPrice         *decimal.Decimal `json:"unit_price,omitempty" db:"unit_price"`
	Notes             *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// Balance returns loaded minus delivered. Invariant: never negative, since
// the manifest ledger rejects delivered quantities above the loaded quantity.
func (l ManifestLine) Balance() decimal.Decimal {
	return l.LoadedQuantity.Sub(l.DeliveredQuantity)
}

// Stop represents one customer drop on the route, ordered by StopSequence.
// Sequences are 1-based and unique per delivery; gaps are allowed, traversal
// strictly follows ascending sequence.
type Stop struct {
	ID              int64           `json:"id" db:"id"`
	DeliveryID      int64           `json:"delivery_id" db:"delivery_id"`
	StopSequence    int             `json:"stop_sequence" db:"stop_sequence"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	CustomerAddress string          `json:"customer_address" db:"customer_address"`
	CustomerPhone   string          `json:"customer_phone" db:"customer_phone"`
	PlannedBoxes    decimal.Decimal `json:"planned_boxes" db:"planned_boxes"`
	PlannedAmount   decimal.Decimal `json:"planned_amount" db:"planned_amount"`
	DeliveredBoxes  decimal.Decimal `json:"delivered_boxes" db:"delivered_boxes"`
	CollectedAmount decimal.Decimal `json:"collected_amount" db:"collected_amount"`
	Status          StopStatus      `json:"status" db:"status"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// BalanceBoxes returns planned minus delivered, clamped at zero.
func (s Stop) BalanceBoxes() decimal.Decimal {
	return clampNonNegative(s.PlannedBoxes.Sub(s.DeliveredBoxes))
}

// PendingAmount returns planned minus collected, clamped at zero.
func (s Stop) PendingAmount() decimal.Decimal {
	return clampNonNegative(s.PlannedAmount.Sub(s.CollectedAmount))
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ============================================================================
// DELIVERY WITH DETAILS
// ============================================================================

// WithDetails includes the derived per-delivery counters used by list views.
type WithDetails struct {
	Delivery
	StopCount      int             `json:"stop_count" db:"stop_count"`
	CompletedStops int             `json:"completed_stops" db:"completed_stops"`
	LoadedBoxes    decimal.Decimal `json:"loaded_boxes" db:"loaded_boxes"`
}

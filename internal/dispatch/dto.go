package dispatch

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ============================================================================
// REQUEST DTOs
// ============================================================================

// CreateDeliveryRequest creates a delivery plus its manifest and stops in one
// batch call. This is what the creation wizard assembles on final submit.
type CreateDeliveryRequest struct {
	EmployeeID    int64              `json:"employee_id" validate:"required,gt=0"`
	VehicleID     int64              `json:"vehicle_id" validate:"required,gt=0"`
	RouteID       int64              `json:"route_id" validate:"required,gt=0"`
	ScheduledDate time.Time          `json:"scheduled_date" validate:"required"`
	ScheduledTime string             `json:"scheduled_time,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	Products      []CreateProductReq `json:"products" validate:"required,min=1,dive"`
	Stops         []CreateStopReq    `json:"stops" validate:"required,min=1,dive"`
}

// CreateProductReq is one manifest row in the create request.
type CreateProductReq struct {
	ProductID      int64            `json:"product_id" validate:"required,gt=0"`
	LoadedQuantity decimal.Decimal  `json:"loaded_quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// CreateStopReq is one stop row in the create request.
type CreateStopReq struct {
	StopSequence    int             `json:"stop_sequence" validate:"required,gt=0"`
	CustomerName    string          `json:"customer_name" validate:"required"`
	CustomerAddress string          `json:"customer_address,omitempty"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	PlannedBoxes    decimal.Decimal `json:"planned_boxes"`
	PlannedAmount   decimal.Decimal `json:"planned_amount"`
}

// StartRequest starts a scheduled delivery and records the start snapshot.
type StartRequest struct {
	OdometerReading *decimal.Decimal `json:"odometer_reading,omitempty"`
	FuelLevel       *decimal.Decimal `json:"fuel_level,omitempty"`
	Location        string           `json:"location,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	ActorID         int64            `json:"actor_id,omitempty"`
}

// CompleteRequest completes an in-progress delivery. Products carries the
// operator-entered per-product delivered totals applied to the manifest.
type CompleteRequest struct {
	OdometerReading *decimal.Decimal  `json:"odometer_reading,omitempty"`
	FuelLevel       *decimal.Decimal  `json:"fuel_level,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
	Products        []ProductDelivery `json:"products" validate:"dive"`
	ActorID         int64             `json:"actor_id,omitempty"`
}

// CancelRequest cancels a delivery. The reason is recorded for audit and
// validated for non-emptiness only.
type CancelRequest struct {
	Reason  string `json:"reason" validate:"required"`
	ActorID int64  `json:"actor_id,omitempty"`
}

// ListRequest filters the delivery listing.
type ListRequest struct {
	Status     *DeliveryStatus `json:"status,omitempty"`
	EmployeeID *int64          `json:"employee_id,omitempty"`
	VehicleID  *int64          `json:"vehicle_id,omitempty"`
	DateFrom   *time.Time      `json:"date_from,omitempty"`
	DateTo     *time.Time      `json:"date_to,omitempty"`
	Search     *string         `json:"search,omitempty"`
	Limit      int             `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int             `json:"offset" validate:"gte=0"`
}

// ============================================================================
// RESPONSE DTOs
// ============================================================================

// DeliveryResponse is the detail payload: the record with nested manifest and
// stops plus the freshly recomputed reconciliation summary.
type DeliveryResponse struct {
	Delivery Delivery `json:"delivery"`
	Summary  Summary  `json:"summary"`
}

// StopCompletionResponse returns the updated stop together with the delivery
// summary so the operator sees running totals without a second round trip.
type StopCompletionResponse struct {
	Stop    Stop    `json:"stop"`
	Summary Summary `json:"summary"`
}

// NextStopResponse wraps the next pending stop, or marks the route finished.
type NextStopResponse struct {
	Remaining bool  `json:"remaining"`
	Stop      *Stop `json:"stop,omitempty"`
}

// ListResponse is the paginated listing payload.
type ListResponse struct {
	Deliveries []WithDetails `json:"deliveries"`
	Total      int           `json:"total"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

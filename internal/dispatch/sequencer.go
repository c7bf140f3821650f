package dispatch

import (
	"github.com/shopspring/decimal"
)

// NextPendingStop returns the stop with the smallest stop_sequence still in
// pending, or ErrNoStopsRemaining once every stop has a terminal status.
// Deterministic and side-effect free; this is the sole traversal primitive
// for the field-operator flow.
func NextPendingStop(stops []Stop) (*Stop, error) {
	var next *Stop
	for i := range stops {
		if stops[i].Status != StopPending {
			continue
		}
		if next == nil || stops[i].StopSequence < next.StopSequence {
			next = &stops[i]
		}
	}
	if next == nil {
		return nil, ErrNoStopsRemaining
	}
	return next, nil
}

// StopCompletion carries the operator-entered actuals for one stop.
type StopCompletion struct {
	DeliveredBoxes  decimal.Decimal `json:"delivered_boxes"`
	CollectedAmount decimal.Decimal `json:"collected_amount"`
	Status          StopStatus      `json:"status" validate:"required"`
	Notes           *string         `json:"notes,omitempty"`
}

// ValidateStopCompletion enforces the stop-completion rules: the delivery
// must be in progress, the stop must still be pending, the target status must
// be terminal, and figures must not be negative. Under-delivery is legal —
// it is represented by status partial, not rejected.
func ValidateStopCompletion(deliveryStatus DeliveryStatus, stop Stop, req StopCompletion) error {
	if deliveryStatus != StatusInProgress {
		return &InvalidTransitionError{From: deliveryStatus, Action: Action("complete stop on")}
	}
	if stop.Status != StopPending {
		return &InvalidStateError{StopID: stop.ID, Status: stop.Status}
	}
	if !req.Status.IsTerminal() {
		return validationErrorf("status", "%q is not a terminal stop status", req.Status)
	}
	if req.DeliveredBoxes.IsNegative() {
		return validationErrorf("delivered_boxes", "must not be negative")
	}
	if req.CollectedAmount.IsNegative() {
		return validationErrorf("collected_amount", "must not be negative")
	}
	return nil
}

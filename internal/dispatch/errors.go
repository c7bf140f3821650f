package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers map these onto HTTP problem responses.
var (
	// ErrNotFound indicates the referenced delivery, stop or product is absent.
	ErrNotFound = errors.New("record not found")
	// ErrNoStopsRemaining signals that every stop has left pending.
	ErrNoStopsRemaining = errors.New("no stops remaining")
	// ErrDuplicateNumber indicates a delivery number collision.
	ErrDuplicateNumber = errors.New("delivery number already exists")
)

// ValidationError reports malformed or incomplete input to a wizard step or
// to manifest reconciliation. Recoverable: the caller corrects and retries.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a lifecycle operation attempted from a state
// that does not permit it. The delivery is left unchanged.
type InvalidTransitionError struct {
	From   DeliveryStatus
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s delivery in status %q", e.Action, e.From)
}

// InvalidStateError reports an attempt to complete a stop that has already
// left pending. The stop's recorded figures are never overwritten.
type InvalidStateError struct {
	StopID int64
	Status StopStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("stop %d already completed with status %q", e.StopID, e.Status)
}

// TransportError wraps a failed call to the backing store. The prior state is
// preserved and the operation is safe to retry unchanged.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// parseDecimalField parses raw operator input; blank means zero.
func parseDecimalField(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, validationErrorf(field, "%q is not a number", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, validationErrorf(field, "must not be negative")
	}
	return d, nil
}

// WizardStep identifies one of the three creation steps.
type WizardStep int

const (
	StepInfo WizardStep = iota
	StepProducts
	StepStops
)

func (s WizardStep) String() string {
	switch s {
	case StepInfo:
		return "info"
	case StepProducts:
		return "products"
	case StepStops:
		return "stops"
	default:
		return "unknown"
	}
}

// WizardInfo holds the basic-info step fields.
type WizardInfo struct {
	EmployeeID    int64
	VehicleID     int64
	RouteID       int64
	ScheduledDate time.Time
	ScheduledTime string
	Notes         *string
}

// WizardStopRow is one row on the stops step. Rows without a customer name
// are kept in the wizard state but silently dropped from the submission.
type WizardStopRow struct {
	CustomerName    string
	CustomerAddress string
	CustomerPhone   string
	PlannedBoxes    string // raw operator input, parsed at build
	PlannedAmount   string
}

// Wizard assembles a complete delivery submission across three sequential
// steps: info, products, stops. Each step is validated before the next is
// reachable; there is no skipping. The final submission is a single batch
// create call, so a failed submit leaves no partial delivery behind and the
// wizard state unchanged on the stops step.
type Wizard struct {
	step     WizardStep
	Info     WizardInfo
	Products []CreateProductReq
	Stops    []WizardStopRow
}

// NewWizard starts a wizard on the info step.
func NewWizard() *Wizard {
	return &Wizard{step: StepInfo}
}

// Step returns the current step.
func (w *Wizard) Step() WizardStep {
	return w.step
}

// Next validates the current step and advances. On validation failure the
// wizard stays put and the error names the offending field.
func (w *Wizard) Next() error {
	switch w.step {
	case StepInfo:
		if err := w.validateInfo(); err != nil {
			return err
		}
		w.step = StepProducts
	case StepProducts:
		if err := w.validateProducts(); err != nil {
			return err
		}
		w.step = StepStops
	case StepStops:
		return validationErrorf("step", "stops is the final step")
	}
	return nil
}

// Back moves to the previous step without validation.
func (w *Wizard) Back() {
	if w.step > StepInfo {
		w.step--
	}
}

func (w *Wizard) validateInfo() error {
	if w.Info.EmployeeID <= 0 {
		return validationErrorf("employee_id", "employee is required")
	}
	if w.Info.VehicleID <= 0 {
		return validationErrorf("vehicle_id", "vehicle is required")
	}
	if w.Info.RouteID <= 0 {
		return validationErrorf("route_id", "route is required")
	}
	if w.Info.ScheduledDate.IsZero() {
		return validationErrorf("scheduled_date", "scheduled date is required")
	}
	return nil
}

func (w *Wizard) validateProducts() error {
	if len(w.Products) == 0 {
		return validationErrorf("products", "at least one product is required")
	}
	for i, p := range w.Products {
		if p.ProductID <= 0 {
			return validationErrorf("products", "row %d: product is required", i+1)
		}
		if !p.LoadedQuantity.IsPositive() {
			return validationErrorf("products", "row %d: loaded quantity must be positive", i+1)
		}
	}
	return nil
}

// Build assembles the batch submission from the stops step. Stop rows without
// a customer name are filtered out, not rejected; surviving rows are numbered
// by their position. Build does not mutate the wizard, so a failed submission
// leaves the operator on this step with everything intact.
func (w *Wizard) Build() (CreateDeliveryRequest, error) {
	if w.step != StepStops {
		return CreateDeliveryRequest{}, validationErrorf("step", "submission is only available from the stops step")
	}

	var stops []CreateStopReq
	for _, row := range w.Stops {
		if row.CustomerName == "" {
			continue
		}
		boxes, err := parseDecimalField("planned_boxes", row.PlannedBoxes)
		if err != nil {
			return CreateDeliveryRequest{}, err
		}
		amount, err := parseDecimalField("planned_amount", row.PlannedAmount)
		if err != nil {
			return CreateDeliveryRequest{}, err
		}
		stops = append(stops, CreateStopReq{
			StopSequence:    len(stops) + 1,
			CustomerName:    row.CustomerName,
			CustomerAddress: row.CustomerAddress,
			CustomerPhone:   row.CustomerPhone,
			PlannedBoxes:    boxes,
			PlannedAmount:   amount,
		})
	}
	if len(stops) == 0 {
		return CreateDeliveryRequest{}, validationErrorf("stops", "at least one stop with a customer name is required")
	}

	return CreateDeliveryRequest{
		EmployeeID:    w.Info.EmployeeID,
		VehicleID:     w.Info.VehicleID,
		RouteID:       w.Info.RouteID,
		ScheduledDate: w.Info.ScheduledDate,
		ScheduledTime: w.Info.ScheduledTime,
		Notes:         w.Info.Notes,
		Products:      w.Products,
		Stops:         stops,
	}, nil
}

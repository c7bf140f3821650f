package dispatch

import (
	"github.com/shopspring/decimal"
)

// Summary is the reconciliation view: running totals folded from the current
// manifest and stop list. It is derived on every read and never stored for
// in-progress deliveries; only delivery completion freezes these figures onto
// the record.
type Summary struct {
	TotalLoadedBoxes    decimal.Decimal `json:"total_loaded_boxes"`
	TotalDeliveredBoxes decimal.Decimal `json:"total_delivered_boxes"`
	BalanceBoxes        decimal.Decimal `json:"balance_boxes"`
	PlannedAmount       decimal.Decimal `json:"planned_amount"`
	CollectedAmount     decimal.Decimal `json:"collected_amount"`
	PendingAmount       decimal.Decimal `json:"pending_amount"`
	BalanceCash         decimal.Decimal `json:"balance_cash"`
	CompletedStops      int             `json:"completed_stops"`
	TotalStops          int             `json:"total_stops"`
}

// Reconcile folds the manifest and stop list into running totals.
//
// Collected and pending amounts count only stops that have been attempted
// (status != pending): a dashboard viewed mid-route reflects work actually
// done, not the full plan. BalanceCash alone is measured against the full
// planned amount, including untouched stops — the operator reads it as "cash
// still out on the route".
func Reconcile(lines []ManifestLine, stops []Stop) Summary {
	s := Summary{
		TotalLoadedBoxes: TotalLoaded(lines),
		TotalStops:       len(stops),
		CollectedAmount:  decimal.Zero,
		PendingAmount:    decimal.Zero,
		PlannedAmount:    decimal.Zero,
	}

	delivered := decimal.Zero
	for _, stop := range stops {
		s.PlannedAmount = s.PlannedAmount.Add(stop.PlannedAmount)
		if stop.Status == StopPending {
			continue
		}
		s.CompletedStops++
		delivered = delivered.Add(stop.DeliveredBoxes)
		s.CollectedAmount = s.CollectedAmount.Add(stop.CollectedAmount)
		s.PendingAmount = s.PendingAmount.Add(stop.PendingAmount())
	}

	s.TotalDeliveredBoxes = delivered
	s.BalanceBoxes = s.TotalLoadedBoxes.Sub(delivered)
	s.BalanceCash = clampNonNegative(s.PlannedAmount.Sub(s.CollectedAmount))
	return s
}

// Efficiency returns delivered over loaded as a percentage with two decimal
// places, or zero when nothing was loaded.
func (s Summary) Efficiency() decimal.Decimal {
	return efficiencyPercent(s.TotalDeliveredBoxes, s.TotalLoadedBoxes)
}

func efficiencyPercent(delivered, loaded decimal.Decimal) decimal.Decimal {
	if loaded.IsZero() {
		return decimal.Zero
	}
	return delivered.Div(loaded).Mul(decimal.NewFromInt(100)).Round(2)
}

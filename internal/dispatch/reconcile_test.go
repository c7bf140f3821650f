package dispatch

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeFixture is a run with 100 boxes loaded across two stops planned at
// 60/40 boxes and 600/400 cash.
func routeFixture() ([]ManifestLine, []Stop) {
	lines := []ManifestLine{
		{ID: 1, ProductID: 10, LoadedQuantity: dec("60")},
		{ID: 2, ProductID: 20, LoadedQuantity: dec("40")},
	}
	stops := []Stop{
		{ID: 1, StopSequence: 1, PlannedBoxes: dec("60"), PlannedAmount: dec("600"), Status: StopPending},
		{ID: 2, StopSequence: 2, PlannedBoxes: dec("40"), PlannedAmount: dec("400"), Status: StopPending},
	}
	return lines, stops
}

func TestReconcileUntouchedRoute(t *testing.T) {
	lines, stops := routeFixture()
	sum := Reconcile(lines, stops)

	assert.True(t, sum.TotalLoadedBoxes.Equal(dec("100")))
	assert.True(t, sum.TotalDeliveredBoxes.IsZero())
	assert.True(t, sum.BalanceBoxes.Equal(dec("100")))
	assert.True(t, sum.PlannedAmount.Equal(dec("1000")))
	assert.True(t, sum.CollectedAmount.IsZero())
	assert.True(t, sum.PendingAmount.IsZero())
	assert.True(t, sum.BalanceCash.Equal(dec("1000")))
	assert.Equal(t, 0, sum.CompletedStops)
	assert.Equal(t, 2, sum.TotalStops)
}

func TestReconcileFirstStopDone(t *testing.T) {
	lines, stops := routeFixture()
	stops[0].Status = StopDelivered
	stops[0].DeliveredBoxes = dec("60")
	stops[0].CollectedAmount = dec("600")

	sum := Reconcile(lines, stops)

	assert.True(t, sum.TotalDeliveredBoxes.Equal(dec("60")))
	assert.True(t, sum.BalanceBoxes.Equal(dec("40")))
	assert.True(t, sum.CollectedAmount.Equal(dec("600")))
	// Cash balance runs against the full plan, untouched stops included.
	assert.True(t, sum.BalanceCash.Equal(dec("400")))
	// Pending amount counts attempted stops only; stop 2 contributes nothing yet.
	assert.True(t, sum.PendingAmount.IsZero())
	assert.Equal(t, 1, sum.CompletedStops)
}

func TestReconcileSecondStopPartial(t *testing.T) {
	lines, stops := routeFixture()
	stops[0].Status = StopDelivered
	stops[0].DeliveredBoxes = dec("60")
	stops[0].CollectedAmount = dec("600")
	stops[1].Status = StopPartial
	stops[1].DeliveredBoxes = dec("30")
	stops[1].CollectedAmount = dec("300")

	sum := Reconcile(lines, stops)

	assert.True(t, sum.TotalDeliveredBoxes.Equal(dec("90")))
	assert.True(t, sum.BalanceBoxes.Equal(dec("10")))
	assert.True(t, sum.CollectedAmount.Equal(dec("900")))
	assert.True(t, sum.BalanceCash.Equal(dec("100")))
	// Stop 2 short by 100 in cash and 10 in boxes.
	assert.True(t, sum.PendingAmount.Equal(dec("100")))
	assert.Equal(t, 2, sum.CompletedStops)
}

func TestReconcileBoxesIdentity(t *testing.T) {
	lines, stops := routeFixture()
	stops[0].Status = StopPartial
	stops[0].DeliveredBoxes = dec("37.5")
	stops[1].Status = StopFailed

	sum := Reconcile(lines, stops)
	require.True(t, sum.TotalDeliveredBoxes.Add(sum.BalanceBoxes).Equal(sum.TotalLoadedBoxes))
	assert.LessOrEqual(t, sum.CompletedStops, sum.TotalStops)
}

func TestReconcileOverCollectionClampsBalanceCash(t *testing.T) {
	lines, stops := routeFixture()
	for i := range stops {
		stops[i].Status = StopDelivered
		stops[i].DeliveredBoxes = stops[i].PlannedBoxes
		stops[i].CollectedAmount = stops[i].PlannedAmount.Add(dec("50"))
	}

	sum := Reconcile(lines, stops)
	assert.True(t, sum.CollectedAmount.Equal(dec("1100")))
	assert.True(t, sum.BalanceCash.IsZero())
	assert.True(t, sum.PendingAmount.IsZero())
}

func TestEfficiency(t *testing.T) {
	tests := []struct {
		name      string
		delivered string
		loaded    string
		want      string
	}{
		{"full", "100", "100", "100"},
		{"ninety percent", "90", "100", "90"},
		{"repeating fraction rounds", "1", "3", "33.33"},
		{"two thirds", "2", "3", "66.67"},
		{"zero delivered", "0", "100", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Summary{TotalDeliveredBoxes: dec(tt.delivered), TotalLoadedBoxes: dec(tt.loaded)}
			assert.True(t, sum.Efficiency().Equal(dec(tt.want)),
				"got %s, want %s", sum.Efficiency(), tt.want)
		})
	}
}

func TestEfficiencyZeroLoaded(t *testing.T) {
	sum := Summary{TotalDeliveredBoxes: decimal.Zero, TotalLoadedBoxes: decimal.Zero}
	assert.True(t, sum.Efficiency().IsZero())
}

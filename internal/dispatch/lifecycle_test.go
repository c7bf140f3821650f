package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    DeliveryStatus
		action  Action
		want    DeliveryStatus
		wantErr bool
	}{
		{"start from scheduled", StatusScheduled, ActionStart, StatusInProgress, false},
		{"complete from in_progress", StatusInProgress, ActionComplete, StatusCompleted, false},
		{"cancel from scheduled", StatusScheduled, ActionCancel, StatusCancelled, false},
		{"cancel from in_progress", StatusInProgress, ActionCancel, StatusCancelled, false},
		{"start from in_progress", StatusInProgress, ActionStart, "", true},
		{"complete from scheduled", StatusScheduled, ActionComplete, "", true},
		{"start from completed", StatusCompleted, ActionStart, "", true},
		{"complete from completed", StatusCompleted, ActionComplete, "", true},
		{"cancel from completed", StatusCompleted, ActionCancel, "", true},
		{"start from cancelled", StatusCancelled, ActionStart, "", true},
		{"cancel from cancelled", StatusCancelled, ActionCancel, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.action)
			if tt.wantErr {
				var transErr *InvalidTransitionError
				require.ErrorAs(t, err, &transErr)
				assert.Equal(t, tt.from, transErr.From)
				assert.Equal(t, tt.action, transErr.Action)
				// Status is handed back unchanged on failure.
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusScheduled, ActionStart))
	assert.True(t, CanTransition(StatusInProgress, ActionCancel))
	assert.False(t, CanTransition(StatusCompleted, ActionCancel))
	assert.False(t, CanTransition(StatusCancelled, ActionStart))
}

func TestValidActionsFrom(t *testing.T) {
	assert.ElementsMatch(t, []Action{ActionStart, ActionCancel}, ValidActionsFrom(StatusScheduled))
	assert.ElementsMatch(t, []Action{ActionComplete, ActionCancel}, ValidActionsFrom(StatusInProgress))
	assert.Empty(t, ValidActionsFrom(StatusCompleted))
	assert.Empty(t, ValidActionsFrom(StatusCancelled))
}

func TestDeliveryStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusScheduled.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestStopStatusIsTerminal(t *testing.T) {
	assert.False(t, StopPending.IsTerminal())
	assert.True(t, StopDelivered.IsTerminal())
	assert.True(t, StopPartial.IsTerminal())
	assert.True(t, StopFailed.IsTerminal())
	assert.True(t, StopSkipped.IsTerminal())
	assert.False(t, StopStatus("bogus").IsTerminal())
}

package dispatch

// Action is a lifecycle operation requested against a delivery.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type transitionKey struct {
	From   DeliveryStatus
	Action Action
}

// transitions is the authoritative lifecycle definition:
// scheduled -> in_progress -> completed | cancelled, with cancellation also
// reachable straight from scheduled. completed and cancelled are terminal.
var transitions = map[transitionKey]DeliveryStatus{
	{StatusScheduled, ActionStart}:     StatusInProgress,
	{StatusInProgress, ActionComplete}: StatusCompleted,
	{StatusScheduled, ActionCancel}:    StatusCancelled,
	{StatusInProgress, ActionCancel}:   StatusCancelled,
}

// Transition resolves the status an action moves a delivery into. All
// lifecycle legality checks go through here; call sites never compare status
// strings themselves.
func Transition(from DeliveryStatus, action Action) (DeliveryStatus, error) {
	next, ok := transitions[transitionKey{From: from, Action: action}]
	if !ok {
		return from, &InvalidTransitionError{From: from, Action: action}
	}
	return next, nil
}

// CanTransition reports whether an action is legal from the given status.
func CanTransition(from DeliveryStatus, action Action) bool {
	_, ok := transitions[transitionKey{From: from, Action: action}]
	return ok
}

// ValidActionsFrom returns the actions legal from a status, for operator UIs.
func ValidActionsFrom(from DeliveryStatus) []Action {
	var actions []Action
	for _, a := range []Action{ActionStart, ActionComplete, ActionCancel} {
		if CanTransition(from, a) {
			actions = append(actions, a)
		}
	}
	return actions
}

package model

// goalTransitions is the Goal status state machine. completed and abandoned
// are terminal.
var goalTransitions = map[Status][]Status{
	StatusActive:  {StatusPaused, StatusCompleted, StatusAbandoned, StatusBlocked},
	StatusPaused:  {StatusActive, StatusAbandoned},
	StatusBlocked: {StatusActive},
}

// CanTransition reports whether a goal may move from one status to another.
// Re-applying the current status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range goalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when the move is not allowed.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if !CanTransition(from, to) {
		return &TransitionError{Kind: "goal", From: string(from), To: string(to)}
	}
	return nil
}

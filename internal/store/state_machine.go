package store

import "fmt"

const (
	JobPool           = "pool"
	JobPendingRequest = "pending_request"
	JobAssigned       = "assigned"
	JobActive         = "active"
	JobCompleted      = "completed"
	JobCancelled      = "cancelled"
)

var terminalStates = map[string]bool{
	JobCompleted: true,
	JobCancelled: true,
}

var allowedTransitions = map[string]map[string]bool{
	JobPool: {
		JobPendingRequest: true,
		JobAssigned:       true,
		JobCancelled:      true,
	},
	JobPendingRequest: {
		JobAssigned:  true,
		JobPool:      true,
		JobCancelled: true,
	},
	JobAssigned: {
		JobActive:    true,
		JobPool:      true,
		JobCancelled: true,
	},
	JobActive: {
		JobCompleted: true,
		JobPool:      true,
		JobCancelled: true,
	},
}

func IsTerminalState(state string) bool {
	return terminalStates[state]
}

func ValidateJobTransition(from, to string) error {
	if terminalStates[from] {
		return fmt.Errorf("cannot transition from terminal state %s", from)
	}

	if allowed, ok := allowedTransitions[from][to]; !ok || !allowed {
		return fmt.Errorf("invalid job state transition from %s to %s", from, to)
	}

	return nil
}

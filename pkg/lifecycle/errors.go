package lifecycle

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned when an operation references an agent id
// with no record in the FSM.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentExists is returned by Initialize when a record already exists
// for the given agent id.
var ErrAgentExists = errors.New("agent already initialized")

// InvalidTransitionError is returned when a requested transition is not
// present in the transition table. It carries the valid targets from
// the rejected state so callers (and logs) can report them.
type InvalidTransitionError struct {
	AgentID string
	From    State
	To      State
	Valid   []State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for agent %s: %s -> %s (valid targets: %v)",
		e.AgentID, e.From, e.To, e.Valid)
}

// IsInvalidTransition reports whether err is an *InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

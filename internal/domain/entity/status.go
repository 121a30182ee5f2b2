package entity

import "errors"

// Status represents a request's position in the review lifecycle
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusOnHold   Status = "on_hold"
)

// ErrInvalidTransition is returned when a status transition is not allowed
var ErrInvalidTransition = errors.New("invalid status transition")

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
	StatusOnHold:   true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved: true,
	StatusRejected: true,
}

// Transitions permitted from each status. A hold can be reopened back to
// pending; approved and rejected are terminal.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved: true,
		StatusRejected: true,
		StatusOnHold:   true,
	},
	StatusOnHold: {
		StatusPending: true,
	},
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanTransition returns true if moving from s to target is permitted
func (s Status) CanTransition(target Status) bool {
	return allowedTransitions[s][target]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

package lifecycle

import "fmt"

// allowedTransitions is the fixed table of permitted (from, to) status pairs.
// Every transition performed anywhere in the system, whether by the pipeline,
// a reactor, or a manual action, must validate against this table.
var allowedTransitions = map[Status][]Status{
	StatusReceived: {
		StatusPendingClassification,
		StatusDuplicate,
		StatusRejected,
	},
	StatusPendingClassification: {
		StatusClassified,
		StatusDuplicate,
		StatusRejected,
	},
	StatusClassified: {
		StatusAssignedToDepartment,
		StatusDuplicate,
		StatusRejected,
	},
	StatusAssignedToDepartment: {
		StatusAssignedToOfficer,
		StatusOnHold,
		StatusRejected,
	},
	StatusAssignedToOfficer: {
		StatusAcknowledged,
		StatusAssignmentRejected,
		StatusRejected,
	},
	StatusAssignmentRejected: {
		StatusAssignedToDepartment,
		StatusAssignedToOfficer,
	},
	StatusAcknowledged: {
		StatusInProgress,
		StatusOnHold,
		StatusAssignmentRejected,
	},
	StatusInProgress: {
		StatusPendingVerification,
		StatusOnHold,
	},
	StatusOnHold: {
		StatusInProgress,
		StatusAssignedToDepartment,
		StatusRejected,
	},
	StatusPendingVerification: {
		StatusResolved,
		StatusInProgress,
		StatusRejected,
	},
	StatusResolved: {
		StatusClosed,
		StatusReopened,
	},
	StatusReopened: {
		StatusInProgress,
	},
	// closed, rejected, duplicate are terminal: no outgoing entries
}

// CanTransition returns true if the (from, to) pair appears in the
// allowed-transition table
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate checks a requested transition against the table. It returns an
// error wrapping ErrInvalidTransition naming the offending pair; it never
// substitutes a different target state.
func Validate(from, to Status) error {
	if !from.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStatuses returns the statuses reachable from the given status
func NextStatuses(from Status) []Status {
	next := allowedTransitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

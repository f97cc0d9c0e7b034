package lifecycle

// Status represents a report's position in the resolution lifecycle
type Status string

const (
	StatusReceived              Status = "received"
	StatusPendingClassification Status = "pending_classification"
	StatusClassified            Status = "classified"
	StatusAssignedToDepartment  Status = "assigned_to_department"
	StatusAssignedToOfficer     Status = "assigned_to_officer"
	StatusAcknowledged          Status = "acknowledged"
	StatusInProgress            Status = "in_progress"
	StatusPendingVerification   Status = "pending_verification"
	StatusResolved              Status = "resolved"
	StatusClosed                Status = "closed"
	StatusRejected              Status = "rejected"
	StatusDuplicate             Status = "duplicate"
	StatusAssignmentRejected    Status = "assignment_rejected"
	StatusOnHold                Status = "on_hold"
	StatusReopened              Status = "reopened"
)

var validStatuses = map[Status]bool{
	StatusReceived:              true,
	StatusPendingClassification: true,
	StatusClassified:            true,
	StatusAssignedToDepartment:  true,
	StatusAssignedToOfficer:     true,
	StatusAcknowledged:          true,
	StatusInProgress:            true,
	StatusPendingVerification:   true,
	StatusResolved:              true,
	StatusClosed:                true,
	StatusRejected:              true,
	StatusDuplicate:             true,
	StatusAssignmentRejected:    true,
	StatusOnHold:                true,
	StatusReopened:              true,
}

var terminalStatuses = map[Status]bool{
	StatusClosed:    true,
	StatusRejected:  true,
	StatusDuplicate: true,
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

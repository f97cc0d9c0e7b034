package entity

import "time"

// Task represents one work assignment of a report to one officer.
// A report has at most one open task at a time; prior tasks are retained
// for audit and never overwritten.
type Task struct {
	ID        int64 `json:"id"`
	ReportID  int64 `json:"report_id"`
	OfficerID int64 `json:"officer_id"`

	Status string `json:"status"`

	// Confidence of the assignment engine's officer match at creation time.
	// Zero for manual assignments.
	MatchConfidence float64 `json:"match_confidence"`

	SLADeadline       *time.Time `json:"sla_deadline,omitempty"`
	SLAViolationLevel int        `json:"sla_violation_level"`

	RejectionReason string     `json:"rejection_reason,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task status constants. Tasks track the execution subset of the report
// lifecycle plus a terminal rejected state for officer declines.
const (
	TaskStatusAssigned   = "ASSIGNED"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusRejected   = "REJECTED"
)

// Open reports whether the task is still active.
func (t *Task) Open() bool {
	return t.ClosedAt == nil
}

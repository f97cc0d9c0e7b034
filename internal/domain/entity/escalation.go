package entity

import "time"

// Escalation is an independent urgency signal attached to a report. It never
// changes the report's lifecycle status; prioritization consults it.
type Escalation struct {
	ID       int64 `json:"id"`
	ReportID int64 `json:"report_id"`

	Reason string `json:"reason"`
	Level  int    `json:"level"`
	Notes  string `json:"notes,omitempty"`

	RaisedByUserID *int64 `json:"raised_by_user_id,omitempty"` // nil for system-raised

	CreatedAt time.Time `json:"created_at"`
}

// Escalation reason constants.
const (
	EscalationReasonSLABreach = "SLA_BREACH"
	EscalationReasonVIP       = "VIP"
	EscalationReasonQuality   = "QUALITY"
	EscalationReasonManual    = "MANUAL"
)

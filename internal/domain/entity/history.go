package entity

import "time"

// StatusHistory is one append-only audit entry for a report status change.
// Rows are never mutated or deleted.
type StatusHistory struct {
	ID       int64 `json:"id"`
	ReportID int64 `json:"report_id"`

	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`

	Actor string `json:"actor"`
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Actor constants for history entries and notifications.
const (
	ActorSystem  = "system"
	ActorCitizen = "citizen"
	ActorOfficer = "officer"
	ActorAdmin   = "admin"
)

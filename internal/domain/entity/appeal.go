package entity

import "time"

// Appeal represents a review request tied to a report, raised by a citizen
// or an officer against a resolution or rejection decision.
type Appeal struct {
	ID       int64 `json:"id"`
	ReportID int64 `json:"report_id"`

	Type   string `json:"type"`
	Reason string `json:"reason"`
	Status string `json:"status"`

	SubmittedByUserID int64  `json:"submitted_by_user_id"`
	ReviewedByUserID  *int64 `json:"reviewed_by_user_id,omitempty"`
	ReviewNotes       string `json:"review_notes,omitempty"`

	// Rework flags. An approved appeal with RequiresRework drives the
	// report to the reopened state exactly once; ReworkAssignedToUserID
	// doubles as the guard against firing the reopen twice.
	RequiresRework         bool   `json:"requires_rework"`
	ReworkAssignedToUserID *int64 `json:"rework_assigned_to_user_id,omitempty"`
	ReworkCompleted        bool   `json:"rework_completed"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Appeal status constants.
const (
	AppealStatusSubmitted   = "SUBMITTED"
	AppealStatusUnderReview = "UNDER_REVIEW"
	AppealStatusApproved    = "APPROVED"
	AppealStatusRejected    = "REJECTED"
	AppealStatusWithdrawn   = "WITHDRAWN"
)

// Appeal type constants.
const (
	AppealTypeResolutionDispute = "RESOLUTION_DISPUTE"
	AppealTypeRejectionDispute  = "REJECTION_DISPUTE"
	AppealTypeQualityComplaint  = "QUALITY_COMPLAINT"
)

// Resolved reports whether the appeal reached a final status.
func (a *Appeal) Resolved() bool {
	switch a.Status {
	case AppealStatusApproved, AppealStatusRejected, AppealStatusWithdrawn:
		return true
	}
	return false
}

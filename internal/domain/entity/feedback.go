package entity

import "time"

// Feedback is a citizen's assessment of a resolved report. At most one
// feedback row may exist per report; a second submission is rejected, not
// overwritten.
type Feedback struct {
	ID                int64 `json:"id"`
	ReportID          int64 `json:"report_id"`
	SubmittedByUserID int64 `json:"submitted_by_user_id"`

	Rating            int    `json:"rating"` // 1-5
	SatisfactionLevel string `json:"satisfaction_level"`
	Comment           string `json:"comment,omitempty"`

	// Quality checks
	IssueResolved    bool `json:"issue_resolved"`
	WorkQualityOK    bool `json:"work_quality_ok"`
	RequiresFollowup bool `json:"requires_followup"`

	CreatedAt time.Time `json:"created_at"`
}

// Satisfaction level constants.
const (
	SatisfactionVeryDissatisfied = "VERY_DISSATISFIED"
	SatisfactionDissatisfied     = "DISSATISFIED"
	SatisfactionNeutral          = "NEUTRAL"
	SatisfactionSatisfied        = "SATISFIED"
	SatisfactionVerySatisfied    = "VERY_SATISFIED"
)

// Accepting reports whether the feedback indicates the citizen accepts the
// resolution, which permits auto-closing the report.
func (f *Feedback) Accepting() bool {
	if f.RequiresFollowup {
		return false
	}
	return f.SatisfactionLevel == SatisfactionSatisfied ||
		f.SatisfactionLevel == SatisfactionVerySatisfied
}

package entity

import "time"

// Report represents a citizen-submitted civic complaint.
// It is the central entity: created on submission, mutated by the
// classification pipeline and by lifecycle actions, never hard-deleted.
type Report struct {
	ID           int64  `json:"id"`
	ReportNumber string `json:"report_number"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Effective classification. Category is empty until the pipeline or a
	// human classifies the report.
	Category string `json:"category,omitempty"`
	Severity string `json:"severity,omitempty"`

	// Location
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`

	// Lifecycle
	Status          string    `json:"status"`
	StatusUpdatedAt time.Time `json:"status_updated_at"`
	EscalationLevel int       `json:"escalation_level"`

	// Duplicate detection. DuplicateOfReportID must never equal ID.
	IsDuplicate         bool   `json:"is_duplicate"`
	DuplicateOfReportID *int64 `json:"duplicate_of_report_id,omitempty"`

	NeedsReview bool `json:"needs_review"`

	// Classification provenance. The ai_* fields record what automation
	// produced; the manual_* fields, once set, take priority and are never
	// overwritten by the pipeline.
	AICategory     string     `json:"ai_category,omitempty"`
	AIConfidence   *float64   `json:"ai_confidence,omitempty"`
	AIModelVersion string     `json:"ai_model_version,omitempty"`
	AIProcessedAt  *time.Time `json:"ai_processed_at,omitempty"`
	ManualCategory string     `json:"manual_category,omitempty"`
	ManualSeverity string     `json:"manual_severity,omitempty"`

	// Routing
	DepartmentID      *int64   `json:"department_id,omitempty"`
	RoutingConfidence *float64 `json:"routing_confidence,omitempty"`

	SubmittedByUserID int64 `json:"submitted_by_user_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveCategory returns the manual category when one has been set,
// otherwise the automated one.
func (r *Report) EffectiveCategory() string {
	if r.ManualCategory != "" {
		return r.ManualCategory
	}
	return r.Category
}

// EffectiveSeverity returns the manual severity when one has been set,
// otherwise the automated one.
func (r *Report) EffectiveSeverity() string {
	if r.ManualSeverity != "" {
		return r.ManualSeverity
	}
	return r.Severity
}

// HasCoordinates reports whether the report carries a usable location.
func (r *Report) HasCoordinates() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// Classified reports whether the pipeline already processed this report.
func (r *Report) Classified() bool {
	return r.AIProcessedAt != nil
}

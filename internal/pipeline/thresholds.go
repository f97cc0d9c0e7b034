package pipeline

import "fmt"

// Thresholds defines the confidence gates for pipeline automation. The
// defaults are product-tuned configuration, not hard-coded truths; operators
// should validate them against real routing-accuracy data.
type Thresholds struct {
	// ClassificationFloor is the minimum category confidence below which the
	// report keeps its best-effort label, gets needs_review, and automation
	// stops.
	ClassificationFloor float64

	// AutoAssignDepartment gates the transition to assigned_to_department.
	AutoAssignDepartment float64

	// AutoAssignOfficer gates task creation for the ranked officer.
	AutoAssignOfficer float64

	// HighConfidence marks results for operator trust signaling only; it
	// gates nothing.
	HighConfidence float64
}

// DefaultThresholds returns the observed production defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		ClassificationFloor:  0.40,
		AutoAssignDepartment: 0.50,
		AutoAssignOfficer:    0.60,
		HighConfidence:       0.70,
	}
}

// Validate ensures all thresholds lie in [0, 1]
func (t Thresholds) Validate() error {
	check := func(name string, v float64) error {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %.2f", name, v)
		}
		return nil
	}
	if err := check("classification_floor", t.ClassificationFloor); err != nil {
		return err
	}
	if err := check("auto_assign_department", t.AutoAssignDepartment); err != nil {
		return err
	}
	if err := check("auto_assign_officer", t.AutoAssignOfficer); err != nil {
		return err
	}
	if err := check("high_confidence", t.HighConfidence); err != nil {
		return err
	}
	return nil
}

// IsHighConfidence reports whether the score clears the trust-signaling
// marker
func (t Thresholds) IsHighConfidence(score float64) bool {
	return score >= t.HighConfidence
}

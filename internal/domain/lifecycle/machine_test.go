package lifecycle

import (
	"errors"
	"strings"
	"testing"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusReceived, false},
		{StatusPendingClassification, false},
		{StatusClassified, false},
		{StatusAssignedToDepartment, false},
		{StatusAssignedToOfficer, false},
		{StatusAcknowledged, false},
		{StatusInProgress, false},
		{StatusPendingVerification, false},
		{StatusResolved, false},
		{StatusAssignmentRejected, false},
		{StatusOnHold, false},
		{StatusReopened, false},
		{StatusClosed, true},
		{StatusRejected, true},
		{StatusDuplicate, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"valid status", StatusReceived, true},
		{"valid terminal", StatusClosed, true},
		{"unknown status", Status("SHIPPED"), false},
		{"empty status", Status(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"pipeline start", StatusReceived, StatusPendingClassification, true},
		{"classification", StatusPendingClassification, StatusClassified, true},
		{"department routing", StatusClassified, StatusAssignedToDepartment, true},
		{"officer assignment", StatusAssignedToDepartment, StatusAssignedToOfficer, true},
		{"duplicate short-circuit", StatusReceived, StatusDuplicate, true},
		{"duplicate after classification", StatusClassified, StatusDuplicate, true},
		{"acknowledge", StatusAssignedToOfficer, StatusAcknowledged, true},
		{"start work", StatusAcknowledged, StatusInProgress, true},
		{"submit for verification", StatusInProgress, StatusPendingVerification, true},
		{"approve resolution", StatusPendingVerification, StatusResolved, true},
		{"verification rejected", StatusPendingVerification, StatusInProgress, true},
		{"officer declines", StatusAssignedToOfficer, StatusAssignmentRejected, true},
		{"decline after ack", StatusAcknowledged, StatusAssignmentRejected, true},
		{"reassignment to department", StatusAssignmentRejected, StatusAssignedToDepartment, true},
		{"direct reassignment", StatusAssignmentRejected, StatusAssignedToOfficer, true},
		{"hold", StatusInProgress, StatusOnHold, true},
		{"resume", StatusOnHold, StatusInProgress, true},
		{"appeal reopen", StatusResolved, StatusReopened, true},
		{"rework restart", StatusReopened, StatusInProgress, true},
		{"feedback close", StatusResolved, StatusClosed, true},

		{"skip classification", StatusReceived, StatusAssignedToOfficer, false},
		{"closed is terminal", StatusClosed, StatusReopened, false},
		{"rejected is terminal", StatusRejected, StatusInProgress, false},
		{"duplicate is terminal", StatusDuplicate, StatusClassified, false},
		{"no backwards routing", StatusAssignedToOfficer, StatusClassified, false},
		{"no self transition", StatusInProgress, StatusInProgress, false},
		{"resolved cannot restart", StatusResolved, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(StatusReceived, StatusPendingClassification); err != nil {
		t.Errorf("Validate() on allowed pair returned error: %v", err)
	}

	err := Validate(StatusResolved, StatusInProgress)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Validate() on forbidden pair = %v, want ErrInvalidTransition", err)
	}

	err = Validate(Status("BOGUS"), StatusClosed)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Validate() with unknown from = %v, want ErrInvalidStatus", err)
	}

	err = Validate(StatusReceived, Status(""))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Validate() with empty to = %v, want ErrInvalidStatus", err)
	}
}

func TestValidate_ErrorNamesOffendingPair(t *testing.T) {
	err := Validate(StatusClosed, StatusReopened)
	if err == nil {
		t.Fatal("Validate() on terminal state returned nil")
	}
	want := "closed -> reopened"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("Validate() error %q does not name pair %q", got, want)
	}
}

func TestTransitionTable_TargetsAreValid(t *testing.T) {
	for from, targets := range allowedTransitions {
		if !from.IsValid() {
			t.Errorf("transition table keys invalid status %s", from)
		}
		if from.IsTerminal() && len(targets) > 0 {
			t.Errorf("terminal status %s has outgoing transitions", from)
		}
		for _, to := range targets {
			if !to.IsValid() {
				t.Errorf("transition table maps %s to invalid status %s", from, to)
			}
		}
	}
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusResolved)
	if len(next) != 2 {
		t.Fatalf("NextStatuses(resolved) = %v, want 2 entries", next)
	}
	next[0] = Status("MUTATED")
	if !CanTransition(StatusResolved, StatusClosed) {
		t.Error("mutating NextStatuses result affected the table")
	}
}

package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"go.uber.org/zap"
)

// AssignConfig holds officer-assignment tuning
type AssignConfig struct {
	// Match confidences per officer profile shape. A zero mismatch
	// confidence keeps specialists of other categories out of
	// auto-assignment.
	SpecialistConfidence float64
	GeneralistConfidence float64
	MismatchConfidence   float64

	// SLAHours maps severity to the working deadline stamped on new tasks.
	SLAHours map[string]int
}

// DefaultAssignConfig returns the observed production defaults
func DefaultAssignConfig() AssignConfig {
	return AssignConfig{
		SpecialistConfidence: 0.85,
		GeneralistConfidence: 0.65,
		MismatchConfidence:   0.0,
		SLAHours: map[string]int{
			entity.SeverityCritical: 24,
			entity.SeverityHigh:     48,
			entity.SeverityMedium:   72,
			entity.SeverityLow:      168,
		},
	}
}

// AssignmentResult is the chosen officer with the engine's match confidence
type AssignmentResult struct {
	Officer    *entity.Officer
	Confidence float64
}

// AssignmentEngine selects an officer within a department. Workload is a
// derived read over open task rows at decision time; two in-flight
// assignments may both pick the same "least loaded" officer, which is
// accepted and self-corrects on the next ranking.
type AssignmentEngine struct {
	config   AssignConfig
	officers port.OfficerRepository
	logger   *zap.Logger
}

// NewAssignmentEngine creates an assignment engine
func NewAssignmentEngine(config AssignConfig, officers port.OfficerRepository, logger *zap.Logger) *AssignmentEngine {
	return &AssignmentEngine{
		config:   config,
		officers: officers,
		logger:   logger,
	}
}

// SelectOfficer ranks the department's officers by open-task count ascending,
// ties broken by earliest last assignment, and returns the first ranked
// officer with a nonzero match confidence. A nil result means manual pick.
func (e *AssignmentEngine) SelectOfficer(ctx context.Context, departmentID int64, category string) (*AssignmentResult, error) {
	workloads, err := e.officers.ListWorkloads(ctx, departmentID)
	if err != nil {
		return nil, Transient("assignment", err)
	}
	if len(workloads) == 0 {
		return nil, nil
	}

	sort.SliceStable(workloads, func(i, j int) bool {
		if workloads[i].OpenTaskCount != workloads[j].OpenTaskCount {
			return workloads[i].OpenTaskCount < workloads[j].OpenTaskCount
		}
		return lastAssigned(workloads[i].Officer).Before(lastAssigned(workloads[j].Officer))
	})

	for _, w := range workloads {
		if !w.Officer.Active {
			continue
		}
		conf := e.matchConfidence(w.Officer, category)
		if conf <= 0 {
			continue
		}
		return &AssignmentResult{Officer: w.Officer, Confidence: conf}, nil
	}

	e.logger.Info("No assignable officer in department",
		zap.Int64("department_id", departmentID),
		zap.String("category", category))
	return nil, nil
}

// Deadline returns the SLA deadline for a task created now at the given
// severity. Unknown severities get the medium window.
func (e *AssignmentEngine) Deadline(severity string, now time.Time) time.Time {
	hours, ok := e.config.SLAHours[severity]
	if !ok {
		hours = e.config.SLAHours[entity.SeverityMedium]
	}
	return now.Add(time.Duration(hours) * time.Hour)
}

func (e *AssignmentEngine) matchConfidence(officer *entity.Officer, category string) float64 {
	if len(officer.Specializations) == 0 {
		return e.config.GeneralistConfidence
	}
	for _, s := range officer.Specializations {
		if s == category {
			return e.config.SpecialistConfidence
		}
	}
	return e.config.MismatchConfidence
}

// lastAssigned treats never-assigned officers as assigned at the zero time,
// which ranks them first among equals.
func lastAssigned(o *entity.Officer) time.Time {
	if o.LastAssignedAt == nil {
		return time.Time{}
	}
	return *o.LastAssignedAt
}

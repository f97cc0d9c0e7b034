package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"go.uber.org/zap"
)

// Outcome is the terminal result of one pipeline run, distinguishable from
// failures in logs and metrics. Low confidence is an outcome, not an error.
type Outcome string

const (
	OutcomeSkipped              Outcome = "skipped"
	OutcomeDuplicate            Outcome = "duplicate"
	OutcomeNeedsReview          Outcome = "needs_review"
	OutcomeClassified           Outcome = "classified"
	OutcomeAssignedToDepartment Outcome = "assigned_to_department"
	OutcomeAssignedToOfficer    Outcome = "assigned_to_officer"
)

// Transitioner is the single status-transition entry point the pipeline
// emits through. The lifecycle service implements it; pipeline code never
// mutates report status directly.
type Transitioner interface {
	Transition(ctx context.Context, reportID int64, to lifecycle.Status, actor, notes string) error
}

// Orchestrator sequences the pipeline stages for one report: duplicate
// search, classification, department routing, officer assignment, with
// confidence gates between them.
type Orchestrator struct {
	thresholds Thresholds

	reports  port.ReportRepository
	tasks    port.TaskRepository
	officers port.OfficerRepository

	finder     *DuplicateFinder
	classifier *Classifier
	router     *DepartmentRouter
	engine     *AssignmentEngine

	transitioner Transitioner
	logger       *zap.Logger
}

// NewOrchestrator creates a pipeline orchestrator
func NewOrchestrator(
	thresholds Thresholds,
	reports port.ReportRepository,
	tasks port.TaskRepository,
	officers port.OfficerRepository,
	finder *DuplicateFinder,
	classifier *Classifier,
	router *DepartmentRouter,
	engine *AssignmentEngine,
	transitioner Transitioner,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		thresholds:   thresholds,
		reports:      reports,
		tasks:        tasks,
		officers:     officers,
		finder:       finder,
		classifier:   classifier,
		router:       router,
		engine:       engine,
		transitioner: transitioner,
		logger:       logger,
	}
}

// Process runs the pipeline for one report. It is idempotent: a settled
// report is skipped unless force is set, and a report a previous run left
// mid-pipeline resumes from its persisted stage instead of repeating
// completed work. Recoverable failures surface as TransientError for the
// worker's retry handling.
func (o *Orchestrator) Process(ctx context.Context, reportID int64, force bool) (Outcome, error) {
	report, err := o.reports.GetByID(ctx, reportID)
	if errors.Is(err, port.ErrNotFound) {
		o.logger.Info("Report vanished before processing, skipping",
			zap.Int64("report_id", reportID))
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", Transient("load", err)
	}

	if !force && o.settled(report) {
		o.logger.Info("Report settled, skipping",
			zap.Int64("report_id", reportID),
			zap.String("status", report.Status),
			zap.Bool("needs_review", report.NeedsReview))
		return OutcomeSkipped, nil
	}

	if report.Title == "" && report.Description == "" {
		return "", &MalformedReportError{ReportID: reportID, Reason: "no text content"}
	}

	var confidence float64
	if report.Classified() && !force {
		// A previous run persisted classification and then hit a transient
		// failure before reaching a resting state. Keep the stored labels
		// and pick up from the gate onward.
		o.logger.Info("Resuming partially processed report",
			zap.Int64("report_id", reportID),
			zap.String("status", report.Status),
			zap.Time("ai_processed_at", *report.AIProcessedAt))
		if report.AIConfidence != nil {
			confidence = *report.AIConfidence
		}
		switch lifecycle.Status(report.Status) {
		case lifecycle.StatusReceived:
			if err := o.advance(ctx, report, lifecycle.StatusPendingClassification, force, "classification started"); err != nil {
				return "", err
			}
			fallthrough
		case lifecycle.StatusPendingClassification:
			if err := o.advance(ctx, report, lifecycle.StatusClassified, force, "classified"); err != nil {
				return "", err
			}
		}
	} else {
		if err := o.advance(ctx, report, lifecycle.StatusPendingClassification, force, "classification started"); err != nil {
			return "", err
		}

		// Stage 1: duplicate search. A confirmed duplicate stops the pipeline.
		match, err := o.finder.FindDuplicate(ctx, report)
		if err != nil {
			return "", err
		}
		if match != nil {
			if match.OriginalID == report.ID {
				// Must be unreachable: the candidate search excludes the subject.
				return "", &MalformedReportError{ReportID: reportID, Reason: "duplicate search returned subject report"}
			}
			if err := o.reports.MarkDuplicate(ctx, report.ID, match.OriginalID); err != nil {
				return "", Transient("dedup", err)
			}
			if err := o.advance(ctx, report, lifecycle.StatusDuplicate, force, "duplicate of existing report"); err != nil {
				return "", err
			}
			return OutcomeDuplicate, nil
		}

		// Stage 2: classification
		result, err := o.classifier.Classify(ctx, report.Title+" "+report.Description)
		if err != nil {
			return "", Transient("classification", err)
		}
		if err := o.persistClassification(ctx, report, result); err != nil {
			return "", Transient("classification", err)
		}
		if err := o.advance(ctx, report, lifecycle.StatusClassified, force, "classified"); err != nil {
			return "", err
		}
		confidence = result.CategoryConfidence
	}

	if confidence < o.thresholds.ClassificationFloor {
		// Best-effort label persisted above; do not auto-route.
		if err := o.reports.SetNeedsReview(ctx, report.ID, true); err != nil {
			return "", Transient("classification", err)
		}
		o.logger.Info("Classification below floor, flagged for review",
			zap.Int64("report_id", report.ID),
			zap.Float64("confidence", confidence),
			zap.Float64("floor", o.thresholds.ClassificationFloor))
		return OutcomeNeedsReview, nil
	}

	// Stage 3: department routing. A department persisted by an earlier run
	// is reused; routing is only computed once per report.
	var departmentID int64
	if report.DepartmentID != nil && !force {
		departmentID = *report.DepartmentID
	} else {
		routing, err := o.router.Route(ctx, report)
		if err != nil {
			return "", err
		}
		if routing == nil || routing.Confidence < o.thresholds.AutoAssignDepartment {
			if err := o.reports.SetNeedsReview(ctx, report.ID, true); err != nil {
				return "", Transient("routing", err)
			}
			return OutcomeClassified, nil
		}
		if err := o.reports.UpdateRouting(ctx, report.ID, routing.DepartmentID, routing.Confidence); err != nil {
			return "", Transient("routing", err)
		}
		departmentID = routing.DepartmentID
		o.logger.Info("Department auto-assigned",
			zap.Int64("report_id", report.ID),
			zap.Int64("department_id", routing.DepartmentID),
			zap.String("stage", routing.Stage),
			zap.Float64("confidence", routing.Confidence),
			zap.Bool("high_confidence", o.thresholds.IsHighConfidence(routing.Confidence)))
	}
	if err := o.advance(ctx, report, lifecycle.StatusAssignedToDepartment, force, "routed to department"); err != nil {
		return "", err
	}

	// Stage 4: officer assignment. An open task left by an earlier run means
	// the officer is already chosen; only the final transition remains.
	if existing, err := o.tasks.GetOpenByReportID(ctx, report.ID); err == nil && existing != nil {
		if err := o.advance(ctx, report, lifecycle.StatusAssignedToOfficer, force, "assigned to officer"); err != nil {
			return "", err
		}
		return OutcomeAssignedToOfficer, nil
	} else if err != nil && !errors.Is(err, port.ErrNotFound) {
		return "", Transient("assignment", err)
	}

	assignment, err := o.engine.SelectOfficer(ctx, departmentID, report.EffectiveCategory())
	if err != nil {
		return "", err
	}
	if assignment == nil || assignment.Confidence < o.thresholds.AutoAssignOfficer {
		return OutcomeAssignedToDepartment, nil
	}

	now := time.Now()
	deadline := o.engine.Deadline(report.EffectiveSeverity(), now)
	task := &entity.Task{
		ReportID:        report.ID,
		OfficerID:       assignment.Officer.ID,
		Status:          entity.TaskStatusAssigned,
		MatchConfidence: assignment.Confidence,
		SLADeadline:     &deadline,
	}
	if err := o.tasks.Create(ctx, task); err != nil {
		return "", Transient("assignment", err)
	}
	if err := o.officers.TouchLastAssigned(ctx, assignment.Officer.ID, now); err != nil {
		// Fairness bookkeeping only; the assignment itself stands.
		o.logger.Warn("Failed to update officer last-assignment time",
			zap.Int64("officer_id", assignment.Officer.ID),
			zap.Error(err))
	}
	if err := o.advance(ctx, report, lifecycle.StatusAssignedToOfficer, force, "assigned to officer"); err != nil {
		return "", err
	}
	o.logger.Info("Officer auto-assigned",
		zap.Int64("report_id", report.ID),
		zap.Int64("officer_id", assignment.Officer.ID),
		zap.Float64("confidence", assignment.Confidence))

	return OutcomeAssignedToOfficer, nil
}

// settled reports whether the pipeline has nothing left to do for this
// report: a terminal status, a confirmed duplicate, a report parked for
// human review, or one that already progressed past the stages the
// pipeline owns. Anything mid-pipeline is fair game for a resumed run.
func (o *Orchestrator) settled(report *entity.Report) bool {
	status := lifecycle.Status(report.Status)
	if status.IsTerminal() || report.IsDuplicate || report.NeedsReview {
		return true
	}
	switch status {
	case lifecycle.StatusReceived,
		lifecycle.StatusPendingClassification,
		lifecycle.StatusClassified,
		lifecycle.StatusAssignedToDepartment:
		return false
	}
	return true
}

// persistClassification writes the provenance fields and, unless a manual
// classification exists, the effective labels. Manual classification is
// sticky: automation never overwrites it.
func (o *Orchestrator) persistClassification(ctx context.Context, report *entity.Report, result *ClassificationResult) error {
	now := time.Now()
	report.AICategory = result.Category
	report.AIConfidence = &result.CategoryConfidence
	report.AIModelVersion = result.ModelVersion
	report.AIProcessedAt = &now

	if report.ManualCategory == "" {
		report.Category = result.Category
	} else {
		report.Category = report.ManualCategory
	}
	if report.ManualSeverity == "" {
		report.Severity = result.Severity
	} else {
		report.Severity = report.ManualSeverity
	}

	return o.reports.UpdateClassification(ctx, report)
}

// advance fires a status transition through the single lifecycle entry
// point. Reaching the target state already is a no-op (idempotent re-runs);
// under force, transitions the table forbids from the current state are
// skipped instead of failed, since a forced re-run may start mid-lifecycle.
func (o *Orchestrator) advance(ctx context.Context, report *entity.Report, to lifecycle.Status, force bool, notes string) error {
	current := lifecycle.Status(report.Status)
	if current == to {
		return nil
	}
	if !lifecycle.CanTransition(current, to) {
		if force {
			o.logger.Debug("Skipping transition on forced re-run",
				zap.Int64("report_id", report.ID),
				zap.String("from", string(current)),
				zap.String("to", string(to)))
			return nil
		}
		return &MalformedReportError{
			ReportID: report.ID,
			Reason:   "status " + report.Status + " does not permit " + string(to),
		}
	}
	if err := o.transitioner.Transition(ctx, report.ID, to, entity.ActorSystem, notes); err != nil {
		return Transient("transition", err)
	}
	report.Status = string(to)
	return nil
}

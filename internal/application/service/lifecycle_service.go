package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"github.com/tejasbhor/civiclens-core/internal/pipeline"
	"go.uber.org/zap"
)

// notifiedTransitions lists the target statuses whose transitions emit a
// notification.
var notifiedTransitions = map[lifecycle.Status]bool{
	lifecycle.StatusAssignedToOfficer: true,
	lifecycle.StatusResolved:          true,
	lifecycle.StatusReopened:          true,
	lifecycle.StatusClosed:            true,
	lifecycle.StatusRejected:          true,
	lifecycle.StatusDuplicate:         true,
}

// LifecycleService is the single entry point for report status transitions.
// Every transition, whether from the pipeline, a reactor, or a manual
// action, validates against the allowed-transition table, updates the
// report, and appends an immutable history entry.
type LifecycleService struct {
	reports  port.ReportRepository
	tasks    port.TaskRepository
	officers port.OfficerRepository
	history  port.HistoryRepository

	escalations port.EscalationRepository
	txManager   port.TransactionManager
	notifier    port.NotificationDispatcher

	engine     *pipeline.AssignmentEngine
	thresholds pipeline.Thresholds

	logger *zap.Logger
}

// NewLifecycleService creates the lifecycle service
func NewLifecycleService(
	reports port.ReportRepository,
	tasks port.TaskRepository,
	officers port.OfficerRepository,
	history port.HistoryRepository,
	escalations port.EscalationRepository,
	txManager port.TransactionManager,
	notifier port.NotificationDispatcher,
	engine *pipeline.AssignmentEngine,
	thresholds pipeline.Thresholds,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		reports:     reports,
		tasks:       tasks,
		officers:    officers,
		history:     history,
		escalations: escalations,
		txManager:   txManager,
		notifier:    notifier,
		engine:      engine,
		thresholds:  thresholds,
		logger:      logger,
	}
}

// Transition validates and applies a status change, records history, and
// dispatches a notification for key transitions. An invalid (from, to) pair
// fails with lifecycle.ErrInvalidTransition; it is never coerced. The status
// update and history entry commit atomically; notification delivery happens
// after commit and its failure never rolls the transition back.
func (s *LifecycleService) Transition(ctx context.Context, reportID int64, to lifecycle.Status, actor, notes string) error {
	var oldStatus string

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		report, err := s.reports.GetByID(ctx, reportID)
		if err != nil {
			return fmt.Errorf("load report %d: %w", reportID, err)
		}
		oldStatus = report.Status

		if err := lifecycle.Validate(lifecycle.Status(report.Status), to); err != nil {
			return err
		}

		now := time.Now()
		if err := s.reports.UpdateStatus(ctx, reportID, string(to), now); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return s.history.Append(ctx, &entity.StatusHistory{
			ReportID:  reportID,
			OldStatus: oldStatus,
			NewStatus: string(to),
			Actor:     actor,
			Notes:     notes,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("Report status transitioned",
		zap.Int64("report_id", reportID),
		zap.String("from", oldStatus),
		zap.String("to", string(to)),
		zap.String("actor", actor))

	if notifiedTransitions[to] {
		n := &port.Notification{
			ReportID:  reportID,
			Event:     "report.status_changed",
			OldStatus: oldStatus,
			NewStatus: string(to),
			Actor:     actor,
			Notes:     notes,
		}
		if err := s.notifier.Dispatch(ctx, n); err != nil {
			// Fire-and-forget: delivery failure never affects the transition.
			s.logger.Warn("Notification dispatch failed",
				zap.Int64("report_id", reportID),
				zap.String("to", string(to)),
				zap.Error(err))
		}
	}
	return nil
}

// Acknowledge records an officer taking ownership of an assigned report
func (s *LifecycleService) Acknowledge(ctx context.Context, reportID int64, actor string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusAcknowledged, actor, "")
}

// StartWork moves an acknowledged or reopened report into active work and
// advances the open task with it
func (s *LifecycleService) StartWork(ctx context.Context, reportID int64, actor string) error {
	if err := s.Transition(ctx, reportID, lifecycle.StatusInProgress, actor, ""); err != nil {
		return err
	}
	task, err := s.tasks.GetOpenByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tasks.UpdateStatus(ctx, task.ID, entity.TaskStatusInProgress)
}

// SubmitForVerification marks the officer's work done, pending admin review
func (s *LifecycleService) SubmitForVerification(ctx context.Context, reportID int64, actor, notes string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusPendingVerification, actor, notes)
}

// ApproveResolution accepts the completed work and closes the open task
func (s *LifecycleService) ApproveResolution(ctx context.Context, reportID int64, actor, notes string) error {
	if err := s.Transition(ctx, reportID, lifecycle.StatusResolved, actor, notes); err != nil {
		return err
	}
	task, err := s.tasks.GetOpenByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tasks.Close(ctx, task.ID, entity.TaskStatusCompleted, "", time.Now())
}

// RejectVerification sends submitted work back to in_progress
func (s *LifecycleService) RejectVerification(ctx context.Context, reportID int64, actor, notes string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusInProgress, actor, notes)
}

// RejectReport terminally rejects a report
func (s *LifecycleService) RejectReport(ctx context.Context, reportID int64, actor, reason string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusRejected, actor, reason)
}

// Hold pauses work on a report
func (s *LifecycleService) Hold(ctx context.Context, reportID int64, actor, reason string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusOnHold, actor, reason)
}

// Resume returns a held report to active work
func (s *LifecycleService) Resume(ctx context.Context, reportID int64, actor string) error {
	return s.Transition(ctx, reportID, lifecycle.StatusInProgress, actor, "resumed from hold")
}

// RejectAssignment records an officer declining a task. The open task closes
// with the rejection reason, the report passes through assignment_rejected,
// and assignment logic re-runs: a confident match is re-assigned
// immediately, otherwise the report returns to the department for a manual
// pick.
func (s *LifecycleService) RejectAssignment(ctx context.Context, reportID int64, actor, reason string) error {
	if err := s.Transition(ctx, reportID, lifecycle.StatusAssignmentRejected, actor, reason); err != nil {
		return err
	}

	task, err := s.tasks.GetOpenByReportID(ctx, reportID)
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		return err
	}
	var declinedOfficerID int64
	if task != nil {
		declinedOfficerID = task.OfficerID
		if err := s.tasks.Close(ctx, task.ID, entity.TaskStatusRejected, reason, time.Now()); err != nil {
			return err
		}
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	if report.DepartmentID != nil {
		assignment, err := s.engine.SelectOfficer(ctx, *report.DepartmentID, report.EffectiveCategory())
		if err == nil && assignment != nil &&
			assignment.Confidence >= s.thresholds.AutoAssignOfficer &&
			assignment.Officer.ID != declinedOfficerID {
			return s.AssignOfficer(ctx, reportID, assignment.Officer.ID, assignment.Confidence, entity.ActorSystem)
		}
	}
	return s.Transition(ctx, reportID, lifecycle.StatusAssignedToDepartment, entity.ActorSystem, "awaiting reassignment")
}

// AssignOfficer creates a task for the given officer and moves the report to
// assigned_to_officer. Used by automatic reassignment and by manual picks.
func (s *LifecycleService) AssignOfficer(ctx context.Context, reportID, officerID int64, confidence float64, actor string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	officer, err := s.officers.GetByID(ctx, officerID)
	if err != nil {
		return err
	}

	now := time.Now()
	deadline := s.engine.Deadline(report.EffectiveSeverity(), now)
	task := &entity.Task{
		ReportID:        reportID,
		OfficerID:       officer.ID,
		Status:          entity.TaskStatusAssigned,
		MatchConfidence: confidence,
		SLADeadline:     &deadline,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return err
	}
	if err := s.officers.TouchLastAssigned(ctx, officer.ID, now); err != nil {
		s.logger.Warn("Failed to update officer last-assignment time",
			zap.Int64("officer_id", officer.ID), zap.Error(err))
	}
	return s.Transition(ctx, reportID, lifecycle.StatusAssignedToOfficer, actor, "")
}

// createReworkTask opens a fresh task for an appeal-driven rework. The prior
// task history stays untouched for audit.
func (s *LifecycleService) createReworkTask(ctx context.Context, reportID int64, officer *entity.Officer) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	now := time.Now()
	deadline := s.engine.Deadline(report.EffectiveSeverity(), now)
	task := &entity.Task{
		ReportID:    reportID,
		OfficerID:   officer.ID,
		Status:      entity.TaskStatusAssigned,
		SLADeadline: &deadline,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return err
	}
	if err := s.officers.TouchLastAssigned(ctx, officer.ID, now); err != nil {
		s.logger.Warn("Failed to update officer last-assignment time",
			zap.Int64("officer_id", officer.ID), zap.Error(err))
	}
	return nil
}

// Escalate raises the report's escalation level and records the signal. It
// never changes the report's lifecycle status.
func (s *LifecycleService) Escalate(ctx context.Context, reportID int64, raisedBy *int64, reason, notes string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	level := report.EscalationLevel + 1
	if err := s.reports.SetEscalationLevel(ctx, reportID, level); err != nil {
		return err
	}
	if err := s.escalations.Create(ctx, &entity.Escalation{
		ReportID:       reportID,
		Reason:         reason,
		Level:          level,
		Notes:          notes,
		RaisedByUserID: raisedBy,
	}); err != nil {
		return err
	}
	s.logger.Info("Report escalated",
		zap.Int64("report_id", reportID),
		zap.String("reason", reason),
		zap.Int("level", level))
	return nil
}

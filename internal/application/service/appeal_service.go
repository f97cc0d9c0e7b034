package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"go.uber.org/zap"
)

// ErrAppealNotReviewable is returned when resolving an appeal that is not
// under review or already reached a final status.
var ErrAppealNotReviewable = fmt.Errorf("appeal is not reviewable")

// AppealService implements the appeal reactor: it translates appeal
// resolutions into lifecycle transitions through the single transition entry
// point, never by mutating status directly.
type AppealService struct {
	appeals   port.AppealRepository
	reports   port.ReportRepository
	officers  port.OfficerRepository
	lifecycle *LifecycleService
	logger    *zap.Logger
}

// NewAppealService creates the appeal service
func NewAppealService(
	appeals port.AppealRepository,
	reports port.ReportRepository,
	officers port.OfficerRepository,
	lifecycleSvc *LifecycleService,
	logger *zap.Logger,
) *AppealService {
	return &AppealService{
		appeals:   appeals,
		reports:   reports,
		officers:  officers,
		lifecycle: lifecycleSvc,
		logger:    logger,
	}
}

// Submit files an appeal against a resolved or rejected report
func (s *AppealService) Submit(ctx context.Context, reportID, userID int64, appealType, reason string) (*entity.Appeal, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	status := lifecycle.Status(report.Status)
	if status != lifecycle.StatusResolved && status != lifecycle.StatusRejected {
		return nil, fmt.Errorf("report %d in status %s cannot be appealed", reportID, report.Status)
	}

	appeal := &entity.Appeal{
		ReportID:          reportID,
		Type:              appealType,
		Reason:            reason,
		Status:            entity.AppealStatusSubmitted,
		SubmittedByUserID: userID,
	}
	if err := s.appeals.Create(ctx, appeal); err != nil {
		return nil, err
	}
	s.logger.Info("Appeal submitted",
		zap.Int64("appeal_id", appeal.ID),
		zap.Int64("report_id", reportID),
		zap.String("type", appealType))
	return appeal, nil
}

// StartReview moves a submitted appeal under review
func (s *AppealService) StartReview(ctx context.Context, appealID, reviewerUserID int64) error {
	appeal, err := s.appeals.GetByID(ctx, appealID)
	if err != nil {
		return err
	}
	if appeal.Status != entity.AppealStatusSubmitted {
		return fmt.Errorf("%w: status %s", ErrAppealNotReviewable, appeal.Status)
	}
	appeal.Status = entity.AppealStatusUnderReview
	appeal.ReviewedByUserID = &reviewerUserID
	return s.appeals.Update(ctx, appeal)
}

// Resolve finishes an appeal review. Approval with requiresRework drives the
// report to reopened exactly once per appeal: the side effects run before the
// approval is recorded, so a failed attempt leaves the appeal reviewable and
// a retried one picks up where the first stopped (report already reopened,
// rework task already open). The rework task goes to reworkOfficerID, or
// back to the last assigned officer when zero.
func (s *AppealService) Resolve(ctx context.Context, appealID, reviewerUserID int64, approve, requiresRework bool, reworkOfficerID int64, notes string) error {
	appeal, err := s.appeals.GetByID(ctx, appealID)
	if err != nil {
		return err
	}
	if appeal.Resolved() {
		return fmt.Errorf("%w: already %s", ErrAppealNotReviewable, appeal.Status)
	}

	now := time.Now()
	appeal.ReviewedByUserID = &reviewerUserID
	appeal.ReviewNotes = notes
	appeal.ResolvedAt = &now
	if !approve {
		appeal.Status = entity.AppealStatusRejected
		return s.appeals.Update(ctx, appeal)
	}

	if requiresRework && appeal.ReworkAssignedToUserID == nil {
		report, err := s.reports.GetByID(ctx, appeal.ReportID)
		if err != nil {
			return err
		}
		switch lifecycle.Status(report.Status) {
		case lifecycle.StatusReopened:
			// A prior attempt reopened the report and failed before the
			// approval was recorded; carry on from there.
		case lifecycle.StatusResolved:
			if err := s.lifecycle.Transition(ctx, appeal.ReportID, lifecycle.StatusReopened,
				entity.ActorAdmin, fmt.Sprintf("appeal %d approved, rework required", appeal.ID)); err != nil {
				return err
			}
		default:
			// Rejection stays terminal; an upheld rejection-dispute is an
			// approval without rework plus whatever manual follow-up the
			// reviewer chooses.
			return fmt.Errorf("report %d in status %s cannot be reopened for rework", appeal.ReportID, report.Status)
		}

		officer, err := s.reworkOfficer(ctx, appeal.ReportID, reworkOfficerID)
		if err != nil {
			return err
		}
		if officer != nil {
			existing, err := s.lifecycle.tasks.GetOpenByReportID(ctx, appeal.ReportID)
			if err != nil && !errors.Is(err, port.ErrNotFound) {
				return err
			}
			if existing == nil {
				if err := s.lifecycle.createReworkTask(ctx, appeal.ReportID, officer); err != nil {
					return err
				}
			}
			appeal.ReworkAssignedToUserID = &officer.UserID
		}
	}

	appeal.Status = entity.AppealStatusApproved
	appeal.RequiresRework = requiresRework
	if err := s.appeals.Update(ctx, appeal); err != nil {
		return err
	}

	if requiresRework {
		s.logger.Info("Appeal approved with rework",
			zap.Int64("appeal_id", appeal.ID),
			zap.Int64("report_id", appeal.ReportID))
	}
	return nil
}

// Withdraw lets the submitter retract a pending appeal
func (s *AppealService) Withdraw(ctx context.Context, appealID, userID int64) error {
	appeal, err := s.appeals.GetByID(ctx, appealID)
	if err != nil {
		return err
	}
	if appeal.SubmittedByUserID != userID {
		return fmt.Errorf("appeal %d was not submitted by user %d", appealID, userID)
	}
	if appeal.Resolved() {
		return fmt.Errorf("%w: already %s", ErrAppealNotReviewable, appeal.Status)
	}
	now := time.Now()
	appeal.Status = entity.AppealStatusWithdrawn
	appeal.ResolvedAt = &now
	return s.appeals.Update(ctx, appeal)
}

// CompleteRework records the officer finishing rework, closing the loop back
// into the normal verification path. A report still sitting in reopened
// passes through in_progress first so every step stays inside the table.
func (s *AppealService) CompleteRework(ctx context.Context, appealID int64, actor string) error {
	appeal, err := s.appeals.GetByID(ctx, appealID)
	if err != nil {
		return err
	}
	if appeal.Status != entity.AppealStatusApproved || !appeal.RequiresRework {
		return fmt.Errorf("appeal %d has no rework to complete", appealID)
	}
	if appeal.ReworkCompleted {
		return fmt.Errorf("appeal %d rework already completed", appealID)
	}

	report, err := s.reports.GetByID(ctx, appeal.ReportID)
	if err != nil {
		return err
	}
	if lifecycle.Status(report.Status) == lifecycle.StatusReopened {
		if err := s.lifecycle.Transition(ctx, appeal.ReportID, lifecycle.StatusInProgress, actor, "rework started"); err != nil {
			return err
		}
	}
	if err := s.lifecycle.Transition(ctx, appeal.ReportID, lifecycle.StatusPendingVerification, actor, "rework completed"); err != nil {
		return err
	}

	appeal.ReworkCompleted = true
	return s.appeals.Update(ctx, appeal)
}

// reworkOfficer resolves who gets the rework task: the explicit pick, or the
// officer who held the last task on the report.
func (s *AppealService) reworkOfficer(ctx context.Context, reportID, reworkOfficerID int64) (*entity.Officer, error) {
	if reworkOfficerID != 0 {
		return s.officers.GetByID(ctx, reworkOfficerID)
	}
	tasks, err := s.lifecycle.tasks.ListByReportID(ctx, reportID)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return s.officers.GetByID(ctx, tasks[len(tasks)-1].OfficerID)
}

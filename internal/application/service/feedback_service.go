package service

import (
	"context"
	"fmt"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"go.uber.org/zap"
)

// FeedbackService implements the feedback reactor. One feedback row may
// exist per report; accepting feedback on a resolved report auto-closes it.
type FeedbackService struct {
	feedback  port.FeedbackRepository
	reports   port.ReportRepository
	lifecycle *LifecycleService
	logger    *zap.Logger
}

// NewFeedbackService creates the feedback service
func NewFeedbackService(
	feedback port.FeedbackRepository,
	reports port.ReportRepository,
	lifecycleSvc *LifecycleService,
	logger *zap.Logger,
) *FeedbackService {
	return &FeedbackService{
		feedback:  feedback,
		reports:   reports,
		lifecycle: lifecycleSvc,
		logger:    logger,
	}
}

// Submit stores citizen feedback for a resolved report. A second submission
// is rejected with port.ErrFeedbackExists and the first row stays unchanged.
// Satisfied feedback with no follow-up requested closes the report;
// otherwise the report stays resolved, leaving the citizen free to appeal.
func (s *FeedbackService) Submit(ctx context.Context, fb *entity.Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", fb.Rating)
	}

	report, err := s.reports.GetByID(ctx, fb.ReportID)
	if err != nil {
		return err
	}
	status := lifecycle.Status(report.Status)
	if status != lifecycle.StatusResolved && status != lifecycle.StatusClosed {
		return fmt.Errorf("report %d in status %s does not accept feedback", fb.ReportID, report.Status)
	}

	if err := s.feedback.Create(ctx, fb); err != nil {
		return err
	}
	s.logger.Info("Feedback submitted",
		zap.Int64("report_id", fb.ReportID),
		zap.Int("rating", fb.Rating),
		zap.String("satisfaction", fb.SatisfactionLevel))

	if status == lifecycle.StatusResolved && fb.Accepting() {
		return s.lifecycle.Transition(ctx, fb.ReportID, lifecycle.StatusClosed,
			entity.ActorCitizen, "closed on satisfied feedback")
	}
	return nil
}

// Get returns the feedback for a report, if any
func (s *FeedbackService) Get(ctx context.Context, reportID int64) (*entity.Feedback, error) {
	return s.feedback.GetByReportID(ctx, reportID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
	"go.uber.org/zap"
)

// reportNumberAttempts bounds the retry loop for the report-number race.
const reportNumberAttempts = 5

// ValidationError rejects malformed input at the boundary, before anything
// is persisted or enqueued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateReportInput is the validated submission payload
type CreateReportInput struct {
	Title             string
	Description       string
	Latitude          float64
	Longitude         float64
	Address           string
	SubmittedByUserID int64
}

// ReportService handles report intake: boundary validation, contention-safe
// report-number generation, and pipeline enqueue.
type ReportService struct {
	reports   port.ReportRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	queue     port.ReportQueue
	logger    *zap.Logger
}

// NewReportService creates the report service
func NewReportService(
	reports port.ReportRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	queue port.ReportQueue,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:   reports,
		history:   history,
		txManager: txManager,
		queue:     queue,
		logger:    logger,
	}
}

// Create validates, persists, and enqueues a new report. Report numbers are
// generated sequentially under contention: a unique-constraint conflict
// rolls the whole transaction back and a fresh transaction retries with a
// freshly generated number. A stale transaction is never reused after a
// conflict.
func (s *ReportService) Create(ctx context.Context, input CreateReportInput) (*entity.Report, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	report := &entity.Report{
		Title:             strings.TrimSpace(input.Title),
		Description:       strings.TrimSpace(input.Description),
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
		Address:           strings.TrimSpace(input.Address),
		Status:            string(lifecycle.StatusReceived),
		StatusUpdatedAt:   time.Now(),
		SubmittedByUserID: input.SubmittedByUserID,
	}

	var lastErr error
	for attempt := 1; attempt <= reportNumberAttempts; attempt++ {
		lastErr = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			year := time.Now().Year()
			seq, err := s.reports.NextSequence(ctx, year)
			if err != nil {
				return err
			}
			report.ReportNumber = FormatReportNumber(year, seq)
			return s.reports.Create(ctx, report)
		})
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, port.ErrDuplicateReportNumber) {
			return nil, lastErr
		}
		s.logger.Debug("Report number conflict, retrying",
			zap.String("number", report.ReportNumber),
			zap.Int("attempt", attempt))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("report number generation exhausted %d attempts: %w",
			reportNumberAttempts, lastErr)
	}

	if err := s.history.Append(ctx, &entity.StatusHistory{
		ReportID:  report.ID,
		OldStatus: "",
		NewStatus: report.Status,
		Actor:     entity.ActorCitizen,
		Notes:     "report submitted",
	}); err != nil {
		s.logger.Warn("Failed to record submission history", zap.Error(err))
	}

	// Enqueue after commit. Complaints are never rejected for queue depth.
	if err := s.queue.Publish(ctx, report.ID, false); err != nil {
		// The report is durable; a failed enqueue is recoverable by the
		// operator requeue tool, so it must not fail the submission.
		s.logger.Error("Failed to enqueue report for processing",
			zap.Int64("report_id", report.ID), zap.Error(err))
	}

	s.logger.Info("Report created",
		zap.Int64("report_id", report.ID),
		zap.String("report_number", report.ReportNumber))
	return report, nil
}

// Reprocess re-enqueues a report, optionally forcing a re-run of an already
// classified one
func (s *ReportService) Reprocess(ctx context.Context, reportID int64, force bool) error {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return err
	}
	return s.queue.Publish(ctx, reportID, force)
}

// SetManualClassification records a human override. Manual labels take
// priority over automation and are sticky: later pipeline runs keep them.
func (s *ReportService) SetManualClassification(ctx context.Context, reportID int64, category, severity string) error {
	if !entity.ValidCategory(category) {
		return &ValidationError{Field: "category", Reason: "unknown label " + category}
	}
	if severity != "" && !entity.ValidSeverity(severity) {
		return &ValidationError{Field: "severity", Reason: "unknown label " + severity}
	}
	return s.reports.UpdateManualClassification(ctx, reportID, category, severity)
}

// Get loads a report with its status history
func (s *ReportService) Get(ctx context.Context, reportID int64) (*entity.Report, []*entity.StatusHistory, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.history.ListByReportID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	return report, history, nil
}

// FormatReportNumber renders the human-readable report number, e.g.
// CL-2026-00042.
func FormatReportNumber(year int, seq int64) string {
	return fmt.Sprintf("CL-%d-%05d", year, seq)
}

func validate(input CreateReportInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(input.Title) > 200 {
		return &ValidationError{Field: "title", Reason: "must not exceed 200 characters"}
	}
	if strings.TrimSpace(input.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	if input.SubmittedByUserID <= 0 {
		return &ValidationError{Field: "submitted_by_user_id", Reason: "must be set"}
	}
	return nil
}

package port

import (
	"context"
	"errors"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReportNumber is returned when an insert loses the race for
	// a generated report number. The caller must roll back the whole
	// transaction and retry with a freshly generated number.
	ErrDuplicateReportNumber = errors.New("report number already taken")

	// ErrFeedbackExists is returned on a second feedback submission for the
	// same report. The first row is retained unchanged.
	ErrFeedbackExists = errors.New("feedback already submitted for report")
)

// ReportRepository defines persistence operations for Report
type ReportRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	GetByID(ctx context.Context, id int64) (*entity.Report, error)
	GetByNumber(ctx context.Context, number string) (*entity.Report, error)

	// NextSequence returns the next report-number sequence value for the
	// given year. The read is not locked; collisions surface as
	// ErrDuplicateReportNumber on Create.
	NextSequence(ctx context.Context, year int) (int64, error)

	UpdateStatus(ctx context.Context, id int64, status string, at time.Time) error
	UpdateClassification(ctx context.Context, report *entity.Report) error
	UpdateManualClassification(ctx context.Context, id int64, category, severity string) error
	UpdateRouting(ctx context.Context, id int64, departmentID int64, confidence float64) error
	MarkDuplicate(ctx context.Context, id int64, duplicateOf int64) error
	SetNeedsReview(ctx context.Context, id int64, needsReview bool) error
	SetEscalationLevel(ctx context.Context, id int64, level int) error

	// FindCandidates returns reports created after the cutoff, carrying
	// coordinates, not already marked duplicate, excluding the given report
	// id. The exclusion is a hard invariant of duplicate detection.
	FindCandidates(ctx context.Context, excludeID int64, since time.Time) ([]*entity.Report, error)
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	GetOpenByReportID(ctx context.Context, reportID int64) (*entity.Task, error)
	ListByReportID(ctx context.Context, reportID int64) ([]*entity.Task, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	Close(ctx context.Context, id int64, status, rejectionReason string, at time.Time) error
	SetSLAViolationLevel(ctx context.Context, id int64, level int) error

	// ListOverdue returns open tasks whose SLA deadline passed before now
	// and whose violation level is below the given level.
	ListOverdue(ctx context.Context, now time.Time, belowLevel int) ([]*entity.Task, error)
}

// AppealRepository defines persistence operations for Appeal
type AppealRepository interface {
	Create(ctx context.Context, appeal *entity.Appeal) error
	GetByID(ctx context.Context, id int64) (*entity.Appeal, error)
	ListByReportID(ctx context.Context, reportID int64) ([]*entity.Appeal, error)
	Update(ctx context.Context, appeal *entity.Appeal) error
}

// FeedbackRepository defines persistence operations for Feedback.
// Create must enforce the one-feedback-per-report invariant and return
// ErrFeedbackExists on violation.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
	GetByReportID(ctx context.Context, reportID int64) (*entity.Feedback, error)
}

// EscalationRepository defines persistence operations for Escalation
type EscalationRepository interface {
	Create(ctx context.Context, escalation *entity.Escalation) error
	ListByReportID(ctx context.Context, reportID int64) ([]*entity.Escalation, error)
}

// HistoryRepository appends and reads report status history. Entries are
// append-only; no update or delete operation exists.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.StatusHistory) error
	ListByReportID(ctx context.Context, reportID int64) ([]*entity.StatusHistory, error)
}

// DepartmentRepository provides read access to department reference data
type DepartmentRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	GetByCategory(ctx context.Context, category string) (*entity.Department, error)
	ListActive(ctx context.Context) ([]*entity.Department, error)
}

// OfficerWorkload pairs an officer with a workload snapshot derived from
// current open task rows at decision time. There is no maintained counter;
// mild staleness is acceptable and self-corrects on the next ranking.
type OfficerWorkload struct {
	Officer       *entity.Officer
	OpenTaskCount int
}

// OfficerRepository provides read access to officers plus the derived
// workload view used by the assignment engine
type OfficerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Officer, error)
	GetByUserID(ctx context.Context, userID int64) (*entity.Officer, error)
	ListWorkloads(ctx context.Context, departmentID int64) ([]*OfficerWorkload, error)
	TouchLastAssigned(ctx context.Context, id int64, at time.Time) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

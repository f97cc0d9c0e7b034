package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
)

// memReports is an in-memory port.ReportRepository
type memReports struct {
	reports map[int64]*entity.Report
	nextID  int64

	// createErrs is consumed one per Create call to simulate insert races.
	createErrs []error
	createN    int

	sequence int64
}

func newMemReports(seed ...*entity.Report) *memReports {
	r := &memReports{reports: map[int64]*entity.Report{}, nextID: 1}
	for _, rep := range seed {
		if rep.ID == 0 {
			rep.ID = r.nextID
		}
		r.reports[rep.ID] = rep
		if rep.ID >= r.nextID {
			r.nextID = rep.ID + 1
		}
	}
	return r
}

func (r *memReports) Create(_ context.Context, report *entity.Report) error {
	r.createN++
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	report.ID = r.nextID
	r.nextID++
	report.CreatedAt = time.Now()
	r.reports[report.ID] = report
	return nil
}

func (r *memReports) GetByID(_ context.Context, id int64) (*entity.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return report, nil
}

func (r *memReports) GetByNumber(_ context.Context, number string) (*entity.Report, error) {
	for _, report := range r.reports {
		if report.ReportNumber == number {
			return report, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *memReports) NextSequence(_ context.Context, _ int) (int64, error) {
	r.sequence++
	return r.sequence, nil
}

func (r *memReports) UpdateStatus(_ context.Context, id int64, status string, at time.Time) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.Status = status
	report.StatusUpdatedAt = at
	return nil
}

func (r *memReports) UpdateClassification(_ context.Context, report *entity.Report) error {
	r.reports[report.ID] = report
	return nil
}

func (r *memReports) UpdateManualClassification(_ context.Context, id int64, category, severity string) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.ManualCategory = category
	report.ManualSeverity = severity
	return nil
}

func (r *memReports) UpdateRouting(_ context.Context, id int64, departmentID int64, confidence float64) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.DepartmentID = &departmentID
	report.RoutingConfidence = &confidence
	return nil
}

func (r *memReports) MarkDuplicate(_ context.Context, id int64, duplicateOf int64) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.IsDuplicate = true
	report.DuplicateOfReportID = &duplicateOf
	return nil
}

func (r *memReports) SetNeedsReview(_ context.Context, id int64, needsReview bool) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.NeedsReview = needsReview
	return nil
}

func (r *memReports) SetEscalationLevel(_ context.Context, id int64, level int) error {
	report, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	report.EscalationLevel = level
	return nil
}

func (r *memReports) FindCandidates(_ context.Context, excludeID int64, since time.Time) ([]*entity.Report, error) {
	var out []*entity.Report
	for _, report := range r.reports {
		if report.ID == excludeID || report.IsDuplicate || !report.HasCoordinates() {
			continue
		}
		if report.CreatedAt.Before(since) {
			continue
		}
		out = append(out, report)
	}
	return out, nil
}

// memTasks is an in-memory port.TaskRepository
type memTasks struct {
	tasks  map[int64]*entity.Task
	nextID int64
}

func newMemTasks(seed ...*entity.Task) *memTasks {
	t := &memTasks{tasks: map[int64]*entity.Task{}, nextID: 1}
	for _, task := range seed {
		if task.ID == 0 {
			task.ID = t.nextID
		}
		t.tasks[task.ID] = task
		if task.ID >= t.nextID {
			t.nextID = task.ID + 1
		}
	}
	return t
}

func (t *memTasks) Create(_ context.Context, task *entity.Task) error {
	task.ID = t.nextID
	t.nextID++
	task.CreatedAt = time.Now()
	t.tasks[task.ID] = task
	return nil
}

func (t *memTasks) GetByID(_ context.Context, id int64) (*entity.Task, error) {
	task, ok := t.tasks[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return task, nil
}

func (t *memTasks) GetOpenByReportID(_ context.Context, reportID int64) (*entity.Task, error) {
	for _, task := range t.tasks {
		if task.ReportID == reportID && task.Open() {
			return task, nil
		}
	}
	return nil, port.ErrNotFound
}

func (t *memTasks) ListByReportID(_ context.Context, reportID int64) ([]*entity.Task, error) {
	var out []*entity.Task
	for id := int64(1); id < t.nextID; id++ {
		if task, ok := t.tasks[id]; ok && task.ReportID == reportID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (t *memTasks) UpdateStatus(_ context.Context, id int64, status string) error {
	task, ok := t.tasks[id]
	if !ok {
		return port.ErrNotFound
	}
	task.Status = status
	return nil
}

func (t *memTasks) Close(_ context.Context, id int64, status, rejectionReason string, at time.Time) error {
	task, ok := t.tasks[id]
	if !ok {
		return port.ErrNotFound
	}
	task.Status = status
	task.RejectionReason = rejectionReason
	task.ClosedAt = &at
	return nil
}

func (t *memTasks) SetSLAViolationLevel(_ context.Context, id int64, level int) error {
	task, ok := t.tasks[id]
	if !ok {
		return port.ErrNotFound
	}
	task.SLAViolationLevel = level
	return nil
}

func (t *memTasks) ListOverdue(_ context.Context, now time.Time, belowLevel int) ([]*entity.Task, error) {
	var out []*entity.Task
	for _, task := range t.tasks {
		if !task.Open() || task.SLADeadline == nil {
			continue
		}
		if task.SLADeadline.Before(now) && task.SLAViolationLevel < belowLevel {
			out = append(out, task)
		}
	}
	return out, nil
}

// memOfficers is an in-memory port.OfficerRepository
type memOfficers struct {
	officers  map[int64]*entity.Officer
	workloads []*port.OfficerWorkload
}

func (o *memOfficers) GetByID(_ context.Context, id int64) (*entity.Officer, error) {
	officer, ok := o.officers[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return officer, nil
}

func (o *memOfficers) GetByUserID(_ context.Context, userID int64) (*entity.Officer, error) {
	for _, officer := range o.officers {
		if officer.UserID == userID {
			return officer, nil
		}
	}
	return nil, port.ErrNotFound
}

func (o *memOfficers) ListWorkloads(_ context.Context, _ int64) ([]*port.OfficerWorkload, error) {
	return o.workloads, nil
}

func (o *memOfficers) TouchLastAssigned(_ context.Context, id int64, at time.Time) error {
	if officer, ok := o.officers[id]; ok {
		officer.LastAssignedAt = &at
	}
	return nil
}

// memHistory records appended entries in order
type memHistory struct {
	entries []*entity.StatusHistory
}

func (h *memHistory) Append(_ context.Context, entry *entity.StatusHistory) error {
	entry.ID = int64(len(h.entries) + 1)
	entry.CreatedAt = time.Now()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *memHistory) ListByReportID(_ context.Context, reportID int64) ([]*entity.StatusHistory, error) {
	var out []*entity.StatusHistory
	for _, e := range h.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

// memEscalations records created escalations
type memEscalations struct {
	escalations []*entity.Escalation
}

func (e *memEscalations) Create(_ context.Context, esc *entity.Escalation) error {
	esc.ID = int64(len(e.escalations) + 1)
	e.escalations = append(e.escalations, esc)
	return nil
}

func (e *memEscalations) ListByReportID(_ context.Context, reportID int64) ([]*entity.Escalation, error) {
	var out []*entity.Escalation
	for _, esc := range e.escalations {
		if esc.ReportID == reportID {
			out = append(out, esc)
		}
	}
	return out, nil
}

// memAppeals is an in-memory port.AppealRepository
type memAppeals struct {
	appeals map[int64]*entity.Appeal
	nextID  int64

	// updateErrs are consumed one per Update call, simulating a store that
	// fails and then recovers.
	updateErrs []error
}

func newMemAppeals(seed ...*entity.Appeal) *memAppeals {
	a := &memAppeals{appeals: map[int64]*entity.Appeal{}, nextID: 1}
	for _, ap := range seed {
		if ap.ID == 0 {
			ap.ID = a.nextID
		}
		a.appeals[ap.ID] = ap
		if ap.ID >= a.nextID {
			a.nextID = ap.ID + 1
		}
	}
	return a
}

func (a *memAppeals) Create(_ context.Context, appeal *entity.Appeal) error {
	appeal.ID = a.nextID
	a.nextID++
	appeal.CreatedAt = time.Now()
	a.appeals[appeal.ID] = appeal
	return nil
}

func (a *memAppeals) GetByID(_ context.Context, id int64) (*entity.Appeal, error) {
	appeal, ok := a.appeals[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	// Rows come back fresh from the real store; callers never share the
	// stored struct.
	cp := *appeal
	return &cp, nil
}

func (a *memAppeals) ListByReportID(_ context.Context, reportID int64) ([]*entity.Appeal, error) {
	var out []*entity.Appeal
	for _, appeal := range a.appeals {
		if appeal.ReportID == reportID {
			out = append(out, appeal)
		}
	}
	return out, nil
}

func (a *memAppeals) Update(_ context.Context, appeal *entity.Appeal) error {
	if len(a.updateErrs) > 0 {
		err := a.updateErrs[0]
		a.updateErrs = a.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := a.appeals[appeal.ID]; !ok {
		return port.ErrNotFound
	}
	cp := *appeal
	a.appeals[appeal.ID] = &cp
	return nil
}

// memFeedback enforces the one-row-per-report invariant like the real store
type memFeedback struct {
	byReport map[int64]*entity.Feedback
}

func newMemFeedback() *memFeedback {
	return &memFeedback{byReport: map[int64]*entity.Feedback{}}
}

func (f *memFeedback) Create(_ context.Context, fb *entity.Feedback) error {
	if _, ok := f.byReport[fb.ReportID]; ok {
		return fmt.Errorf("%w: report %d", port.ErrFeedbackExists, fb.ReportID)
	}
	fb.ID = int64(len(f.byReport) + 1)
	fb.CreatedAt = time.Now()
	f.byReport[fb.ReportID] = fb
	return nil
}

func (f *memFeedback) GetByReportID(_ context.Context, reportID int64) (*entity.Feedback, error) {
	fb, ok := f.byReport[reportID]
	if !ok {
		return nil, port.ErrNotFound
	}
	return fb, nil
}

// passthroughTx runs the function without a real transaction
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingNotifier captures dispatched notifications and can fail on demand
type recordingNotifier struct {
	sent []*port.Notification
	err  error
}

func (n *recordingNotifier) Dispatch(_ context.Context, notification *port.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

// recordingQueue captures published report ids and can fail on demand
type recordingQueue struct {
	published []int64
	forced    []bool
	err       error
}

func (q *recordingQueue) Publish(_ context.Context, reportID int64, force bool) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, reportID)
	q.forced = append(q.forced, force)
	return nil
}

func (q *recordingQueue) Stats(_ context.Context) (*port.QueueStats, error) {
	return &port.QueueStats{Ready: len(q.published)}, nil
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
)

// fakeIntelligence scores labels from fixed maps and returns canned
// embeddings keyed by text.
type fakeIntelligence struct {
	categoryScores map[string]float64
	severityScores map[string]float64
	embeddings     map[string][]float32
	classifyErr    error
	embedErr       error
}

func (f *fakeIntelligence) Classify(_ context.Context, _ string, labels []string) ([]port.LabelScore, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	source := f.severityScores
	for _, l := range labels {
		if l == entity.CategoryRoads {
			source = f.categoryScores
			break
		}
	}
	out := make([]port.LabelScore, 0, len(labels))
	for _, l := range labels {
		out = append(out, port.LabelScore{Label: l, Score: source[l]})
	}
	return out, nil
}

func (f *fakeIntelligence) Embed(_ context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if vec, ok := f.embeddings[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeIntelligence) ModelVersion() string { return "test-model-v1" }

// fakeReportRepo is an in-memory port.ReportRepository
type fakeReportRepo struct {
	reports map[int64]*entity.Report

	markedDuplicateOf map[int64]int64
	needsReview       map[int64]bool
	routedTo          map[int64]int64
	classifyCalls     int

	// routingErrs are consumed one per UpdateRouting call, simulating a
	// store that fails and then recovers.
	routingErrs []error
}

func newFakeReportRepo(reports ...*entity.Report) *fakeReportRepo {
	r := &fakeReportRepo{
		reports:           make(map[int64]*entity.Report),
		markedDuplicateOf: make(map[int64]int64),
		needsReview:       make(map[int64]bool),
		routedTo:          make(map[int64]int64),
	}
	for _, rep := range reports {
		r.reports[rep.ID] = rep
	}
	return r
}

func (r *fakeReportRepo) Create(_ context.Context, report *entity.Report) error {
	r.reports[report.ID] = report
	return nil
}

func (r *fakeReportRepo) GetByID(_ context.Context, id int64) (*entity.Report, error) {
	rep, ok := r.reports[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return rep, nil
}

func (r *fakeReportRepo) GetByNumber(_ context.Context, number string) (*entity.Report, error) {
	for _, rep := range r.reports {
		if rep.ReportNumber == number {
			return rep, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeReportRepo) NextSequence(_ context.Context, _ int) (int64, error) {
	return int64(len(r.reports) + 1), nil
}

func (r *fakeReportRepo) UpdateStatus(_ context.Context, id int64, status string, _ time.Time) error {
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.Status = status
	return nil
}

func (r *fakeReportRepo) UpdateClassification(_ context.Context, report *entity.Report) error {
	r.classifyCalls++
	r.reports[report.ID] = report
	return nil
}

func (r *fakeReportRepo) UpdateManualClassification(_ context.Context, id int64, category, severity string) error {
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.ManualCategory = category
	rep.Category = category
	if severity != "" {
		rep.ManualSeverity = severity
		rep.Severity = severity
	}
	return nil
}

func (r *fakeReportRepo) UpdateRouting(_ context.Context, id int64, departmentID int64, confidence float64) error {
	if len(r.routingErrs) > 0 {
		err := r.routingErrs[0]
		r.routingErrs = r.routingErrs[1:]
		if err != nil {
			return err
		}
	}
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.DepartmentID = &departmentID
	rep.RoutingConfidence = &confidence
	r.routedTo[id] = departmentID
	return nil
}

func (r *fakeReportRepo) MarkDuplicate(_ context.Context, id int64, duplicateOf int64) error {
	if id == duplicateOf {
		return fmt.Errorf("report cannot duplicate itself")
	}
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.IsDuplicate = true
	rep.DuplicateOfReportID = &duplicateOf
	r.markedDuplicateOf[id] = duplicateOf
	return nil
}

func (r *fakeReportRepo) SetNeedsReview(_ context.Context, id int64, needsReview bool) error {
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.NeedsReview = needsReview
	r.needsReview[id] = needsReview
	return nil
}

func (r *fakeReportRepo) SetEscalationLevel(_ context.Context, id int64, level int) error {
	rep, ok := r.reports[id]
	if !ok {
		return port.ErrNotFound
	}
	rep.EscalationLevel = level
	return nil
}

func (r *fakeReportRepo) FindCandidates(_ context.Context, excludeID int64, since time.Time) ([]*entity.Report, error) {
	var out []*entity.Report
	for _, rep := range r.reports {
		if rep.ID == excludeID || rep.IsDuplicate {
			continue
		}
		if rep.CreatedAt.Before(since) {
			continue
		}
		if !rep.HasCoordinates() {
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}

// fakeTaskRepo records created tasks
type fakeTaskRepo struct {
	created []*entity.Task
	nextID  int64
}

func (r *fakeTaskRepo) Create(_ context.Context, task *entity.Task) error {
	r.nextID++
	task.ID = r.nextID
	r.created = append(r.created, task)
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id int64) (*entity.Task, error) {
	for _, t := range r.created {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeTaskRepo) GetOpenByReportID(_ context.Context, reportID int64) (*entity.Task, error) {
	for _, t := range r.created {
		if t.ReportID == reportID && t.Open() {
			return t, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeTaskRepo) ListByReportID(_ context.Context, reportID int64) ([]*entity.Task, error) {
	var out []*entity.Task
	for _, t := range r.created {
		if t.ReportID == reportID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	for _, t := range r.created {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return port.ErrNotFound
}

func (r *fakeTaskRepo) Close(_ context.Context, id int64, status, reason string, at time.Time) error {
	for _, t := range r.created {
		if t.ID == id && t.Open() {
			t.Status = status
			t.RejectionReason = reason
			t.ClosedAt = &at
			return nil
		}
	}
	return port.ErrNotFound
}

func (r *fakeTaskRepo) SetSLAViolationLevel(_ context.Context, id int64, level int) error {
	for _, t := range r.created {
		if t.ID == id {
			t.SLAViolationLevel = level
			return nil
		}
	}
	return port.ErrNotFound
}

func (r *fakeTaskRepo) ListOverdue(_ context.Context, now time.Time, belowLevel int) ([]*entity.Task, error) {
	var out []*entity.Task
	for _, t := range r.created {
		if t.Open() && t.SLADeadline != nil && t.SLADeadline.Before(now) && t.SLAViolationLevel < belowLevel {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeOfficerRepo serves a fixed workload list
type fakeOfficerRepo struct {
	workloads []*port.OfficerWorkload
	touched   []int64
}

func (r *fakeOfficerRepo) GetByID(_ context.Context, id int64) (*entity.Officer, error) {
	for _, w := range r.workloads {
		if w.Officer.ID == id {
			return w.Officer, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeOfficerRepo) GetByUserID(_ context.Context, userID int64) (*entity.Officer, error) {
	for _, w := range r.workloads {
		if w.Officer.UserID == userID {
			return w.Officer, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeOfficerRepo) ListWorkloads(_ context.Context, departmentID int64) ([]*port.OfficerWorkload, error) {
	var out []*port.OfficerWorkload
	for _, w := range r.workloads {
		if w.Officer.DepartmentID == departmentID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeOfficerRepo) TouchLastAssigned(_ context.Context, id int64, at time.Time) error {
	r.touched = append(r.touched, id)
	for _, w := range r.workloads {
		if w.Officer.ID == id {
			w.Officer.LastAssignedAt = &at
		}
	}
	return nil
}

// fakeDepartmentRepo maps categories to departments
type fakeDepartmentRepo struct {
	byCategory map[string]*entity.Department
	active     []*entity.Department
}

func (r *fakeDepartmentRepo) GetByID(_ context.Context, id int64) (*entity.Department, error) {
	for _, d := range r.active {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, port.ErrNotFound
}

func (r *fakeDepartmentRepo) GetByCategory(_ context.Context, category string) (*entity.Department, error) {
	if d, ok := r.byCategory[category]; ok {
		return d, nil
	}
	return nil, port.ErrNotFound
}

func (r *fakeDepartmentRepo) ListActive(_ context.Context) ([]*entity.Department, error) {
	return r.active, nil
}

// fakeTransitioner applies transitions straight to the report store,
// validating against the lifecycle table like the real service does.
type fakeTransitioner struct {
	reports     *fakeReportRepo
	transitions []string
	failWith    error
}

func (t *fakeTransitioner) Transition(_ context.Context, reportID int64, to lifecycle.Status, _, _ string) error {
	if t.failWith != nil {
		return t.failWith
	}
	rep, ok := t.reports.reports[reportID]
	if !ok {
		return port.ErrNotFound
	}
	if err := lifecycle.Validate(lifecycle.Status(rep.Status), to); err != nil {
		return err
	}
	t.transitions = append(t.transitions, rep.Status+"->"+string(to))
	rep.Status = string(to)
	rep.StatusUpdatedAt = time.Now()
	return nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"github.com/tejasbhor/civiclens-core/internal/domain/lifecycle"
)

type appealFixture struct {
	*lifecycleFixture
	appeals *memAppeals
	service *AppealService
}

func newAppealFixture(t *testing.T, seed ...*entity.Report) *appealFixture {
	t.Helper()
	lf := newLifecycleFixture(t, seed...)
	f := &appealFixture{
		lifecycleFixture: lf,
		appeals:          newMemAppeals(),
	}
	f.service = NewAppealService(f.appeals, f.reports, f.officers, lf.service, zap.NewNop())
	return f
}

func TestSubmitAppealOnResolvedReport(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))

	appeal, err := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "issue not actually fixed")
	require.NoError(t, err)
	assert.Equal(t, entity.AppealStatusSubmitted, appeal.Status)
	assert.Equal(t, int64(7), appeal.SubmittedByUserID)
}

func TestSubmitAppealRejectedForActiveReport(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusInProgress))

	_, err := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "too slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be appealed")
}

func TestStartReviewRequiresSubmittedStatus(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	appeal, err := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeQualityComplaint, "sloppy patch")
	require.NoError(t, err)

	require.NoError(t, f.service.StartReview(context.Background(), appeal.ID, 50))
	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusUnderReview, got.Status)
	require.NotNil(t, got.ReviewedByUserID)
	assert.Equal(t, int64(50), *got.ReviewedByUserID)

	err = f.service.StartReview(context.Background(), appeal.ID, 51)
	assert.ErrorIs(t, err, ErrAppealNotReviewable)
}

func TestResolveRejectionLeavesReportUntouched(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "not fixed")

	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, false, false, 0, "work verified on site"))

	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusRejected, got.Status)
	assert.NotNil(t, got.ResolvedAt)

	report, _ := f.reports.GetByID(context.Background(), 1)
	assert.Equal(t, string(lifecycle.StatusResolved), report.Status)
}

func TestResolveApprovalWithReworkReopensOnce(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	officer := &entity.Officer{ID: 3, UserID: 103, DepartmentID: 5, Active: true}
	f.officers.officers = map[int64]*entity.Officer{3: officer}
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "pothole reappeared")

	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, "rework needed"))

	report, _ := f.reports.GetByID(context.Background(), 1)
	assert.Equal(t, string(lifecycle.StatusReopened), report.Status)

	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusApproved, got.Status)
	require.NotNil(t, got.ReworkAssignedToUserID)
	assert.Equal(t, int64(103), *got.ReworkAssignedToUserID)

	task, err := f.tasks.GetOpenByReportID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), task.OfficerID)

	// A second resolve attempt on the finished appeal fails and fires no
	// second reopen.
	err = f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, "again")
	assert.ErrorIs(t, err, ErrAppealNotReviewable)
}

func TestResolveReworkDefaultsToLastOfficer(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	officer := &entity.Officer{ID: 3, UserID: 103, DepartmentID: 5, Active: true}
	f.officers.officers = map[int64]*entity.Officer{3: officer}
	closedAt := time.Now()
	require.NoError(t, f.tasks.Create(context.Background(), &entity.Task{
		ReportID: 1, OfficerID: 3, Status: entity.TaskStatusCompleted, ClosedAt: &closedAt,
	}))
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeQualityComplaint, "bad surface finish")

	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 0, ""))

	task, err := f.tasks.GetOpenByReportID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), task.OfficerID)
}

func TestResolveReworkOnRejectedReportStaysReviewable(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusRejected))
	officer := &entity.Officer{ID: 3, UserID: 103, DepartmentID: 5, Active: true}
	f.officers.officers = map[int64]*entity.Officer{3: officer}
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeRejectionDispute, "valid complaint")

	// Rejection is terminal; rework cannot reopen it, and the refusal must
	// not consume the appeal.
	err := f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be reopened for rework")

	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusSubmitted, got.Status)
	report, _ := f.reports.GetByID(context.Background(), 1)
	assert.Equal(t, string(lifecycle.StatusRejected), report.Status)

	// The reviewer can still settle it as an approval without rework.
	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, true, false, 0, "rejection overturned on paper"))
	got, _ = f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusApproved, got.Status)
}

func TestResolveRetriesAfterPartialFailure(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	officer := &entity.Officer{ID: 3, UserID: 103, DepartmentID: 5, Active: true}
	f.officers.officers = map[int64]*entity.Officer{3: officer}
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "pothole reappeared")
	require.NoError(t, f.service.StartReview(context.Background(), appeal.ID, 50))

	// First attempt reopens the report and creates the rework task, then the
	// approval write fails.
	f.appeals.updateErrs = []error{errors.New("database is locked")}
	err := f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, "")
	require.Error(t, err)

	report, _ := f.reports.GetByID(context.Background(), 1)
	assert.Equal(t, string(lifecycle.StatusReopened), report.Status)
	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusUnderReview, got.Status)

	// The retry completes the approval without a second reopen or a second
	// rework task.
	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, ""))
	got, _ = f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusApproved, got.Status)
	require.NotNil(t, got.ReworkAssignedToUserID)
	assert.Equal(t, int64(103), *got.ReworkAssignedToUserID)

	tasks, err := f.tasks.ListByReportID(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestWithdrawOnlyBySubmitter(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusRejected))
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeRejectionDispute, "valid complaint")

	err := f.service.Withdraw(context.Background(), appeal.ID, 99)
	require.Error(t, err)

	require.NoError(t, f.service.Withdraw(context.Background(), appeal.ID, 7))
	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.Equal(t, entity.AppealStatusWithdrawn, got.Status)

	// A withdrawn appeal cannot be resolved afterwards.
	err = f.service.Resolve(context.Background(), appeal.ID, 50, true, false, 0, "")
	assert.ErrorIs(t, err, ErrAppealNotReviewable)
}

func TestCompleteReworkStepsThroughInProgress(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	officer := &entity.Officer{ID: 3, UserID: 103, DepartmentID: 5, Active: true}
	f.officers.officers = map[int64]*entity.Officer{3: officer}
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "reopened issue")
	require.NoError(t, f.service.Resolve(context.Background(), appeal.ID, 50, true, true, 3, ""))

	require.NoError(t, f.service.CompleteRework(context.Background(), appeal.ID, "officer:103"))

	report, _ := f.reports.GetByID(context.Background(), 1)
	assert.Equal(t, string(lifecycle.StatusPendingVerification), report.Status)

	got, _ := f.appeals.GetByID(context.Background(), appeal.ID)
	assert.True(t, got.ReworkCompleted)

	// History shows the reopened report passed through in_progress.
	var path []string
	for _, e := range f.history.entries {
		path = append(path, e.NewStatus)
	}
	assert.Contains(t, path, string(lifecycle.StatusInProgress))

	err := f.service.CompleteRework(context.Background(), appeal.ID, "officer:103")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestCompleteReworkRequiresApprovedRework(t *testing.T) {
	f := newAppealFixture(t, statusReport(1, lifecycle.StatusResolved))
	appeal, _ := f.service.Submit(context.Background(), 1, 7, entity.AppealTypeResolutionDispute, "not fixed")

	err := f.service.CompleteRework(context.Background(), appeal.ID, "officer:103")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rework to complete")
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
)

func workload(id int64, open int, lastAssigned *time.Time, active bool, specs ...string) *port.OfficerWorkload {
	return &port.OfficerWorkload{
		Officer: &entity.Officer{
			ID: id, UserID: 100 + id, DepartmentID: 1, Active: active,
			Specializations: specs, LastAssignedAt: lastAssigned,
		},
		OpenTaskCount: open,
	}
}

func TestSelectOfficerPrefersLowestWorkload(t *testing.T) {
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 5, nil, true, entity.CategoryRoads),
		workload(2, 1, nil, true, entity.CategoryRoads),
		workload(3, 3, nil, true, entity.CategoryRoads),
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryRoads)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(2), result.Officer.ID)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
}

func TestSelectOfficerBreaksTiesByEarliestAssignment(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	old := time.Now().Add(-48 * time.Hour)
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 2, &recent, true, entity.CategoryRoads),
		workload(2, 2, &old, true, entity.CategoryRoads),
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryRoads)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(2), result.Officer.ID)
}

func TestSelectOfficerNeverAssignedRanksFirst(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 2, &recent, true, entity.CategoryRoads),
		workload(2, 2, nil, true, entity.CategoryRoads),
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryRoads)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(2), result.Officer.ID)
}

func TestSelectOfficerSkipsInactiveAndMismatched(t *testing.T) {
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 0, nil, false, entity.CategoryRoads),        // inactive
		workload(2, 1, nil, true, entity.CategoryDrainage),      // zero match confidence
		workload(3, 4, nil, true, entity.CategoryRoads),         // specialist
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryRoads)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(3), result.Officer.ID)
}

func TestSelectOfficerGeneralistConfidence(t *testing.T) {
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 0, nil, true), // no specializations
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryWater)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 0.65, result.Confidence, 1e-9)
}

func TestSelectOfficerNoneAssignable(t *testing.T) {
	officers := &fakeOfficerRepo{workloads: []*port.OfficerWorkload{
		workload(1, 0, nil, true, entity.CategoryDrainage),
	}}
	engine := NewAssignmentEngine(DefaultAssignConfig(), officers, zap.NewNop())

	result, err := engine.SelectOfficer(context.Background(), 1, entity.CategoryRoads)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDeadlineBySeverity(t *testing.T) {
	engine := NewAssignmentEngine(DefaultAssignConfig(), nil, zap.NewNop())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		severity string
		hours    int
	}{
		{entity.SeverityCritical, 24},
		{entity.SeverityHigh, 48},
		{entity.SeverityMedium, 72},
		{entity.SeverityLow, 168},
		{"", 72}, // unknown severity gets the medium window
	}
	for _, tt := range tests {
		got := engine.Deadline(tt.severity, now)
		assert.Equal(t, now.Add(time.Duration(tt.hours)*time.Hour), got, "severity %q", tt.severity)
	}
}

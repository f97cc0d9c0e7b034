package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
)

// SLAWorkerConfig holds configuration for the SLA sweep worker
type SLAWorkerConfig struct {
	PollInterval      time.Duration
	MaxViolationLevel int
	SweepTimeout      time.Duration
}

// DefaultSLAWorkerConfig returns default configuration
func DefaultSLAWorkerConfig() SLAWorkerConfig {
	return SLAWorkerConfig{
		PollInterval:      5 * time.Minute,
		MaxViolationLevel: 3,
		SweepTimeout:      2 * time.Minute,
	}
}

// breachEscalator records an escalation against a report. The lifecycle
// service implements it.
type breachEscalator interface {
	Escalate(ctx context.Context, reportID int64, raisedBy *int64, reason, notes string) error
}

// SLAWorker periodically sweeps open tasks whose deadline has passed, bumps
// their violation level and raises a breach escalation on the report. The
// report's lifecycle status is never changed by a sweep.
type SLAWorker struct {
	config SLAWorkerConfig

	taskRepo  port.TaskRepository
	lifecycle breachEscalator
	logger    *zap.Logger

	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	isRunning     bool
	lastSweep     time.Time
	escalatedSum  int
	sweepFailures int
}

// NewSLAWorker creates a new SLA sweep worker
func NewSLAWorker(
	config SLAWorkerConfig,
	taskRepo port.TaskRepository,
	lifecycle breachEscalator,
	logger *zap.Logger,
) *SLAWorker {
	return &SLAWorker{
		config:    config,
		taskRepo:  taskRepo,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Start begins the sweep loop
func (w *SLAWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("sla worker already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("SLAWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("max_violation_level", w.config.MaxViolationLevel))

	go w.sweepLoop()
	return nil
}

// Stop gracefully terminates the worker
func (w *SLAWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	escalated := w.escalatedSum
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("SLAWorker stopped", zap.Int("escalated_total", escalated))
	return nil
}

// Name returns the worker name for identification
func (w *SLAWorker) Name() string {
	return "SLAWorker"
}

// Status reports sweep liveness and counters for the health endpoint
func (w *SLAWorker) Status() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return map[string]interface{}{
		"running":         w.isRunning,
		"last_sweep":      w.lastSweep,
		"escalated_total": w.escalatedSum,
		"sweep_failures":  w.sweepFailures,
	}
}

func (w *SLAWorker) sweepLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *SLAWorker) sweep() {
	ctx, cancel := context.WithTimeout(w.ctx, w.config.SweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	tasks, err := w.taskRepo.ListOverdue(ctx, now, w.config.MaxViolationLevel)
	if err != nil {
		w.logger.Error("SLA sweep failed to list overdue tasks", zap.Error(err))
		w.mu.Lock()
		w.sweepFailures++
		w.mu.Unlock()
		return
	}

	escalated := 0
	for _, task := range tasks {
		level := task.SLAViolationLevel + 1
		if err := w.taskRepo.SetSLAViolationLevel(ctx, task.ID, level); err != nil {
			w.logger.Error("Failed to bump SLA violation level",
				zap.Int64("task_id", task.ID),
				zap.Error(err))
			continue
		}

		deadline := ""
		if task.SLADeadline != nil {
			deadline = task.SLADeadline.Format(time.RFC3339)
		}
		notes := fmt.Sprintf("task %d overdue since %s, violation level %d", task.ID, deadline, level)
		if err := w.lifecycle.Escalate(ctx, task.ReportID, nil, entity.EscalationReasonSLABreach, notes); err != nil {
			w.logger.Error("Failed to escalate overdue report",
				zap.Int64("report_id", task.ReportID),
				zap.Error(err))
			continue
		}
		escalated++
	}

	w.mu.Lock()
	w.lastSweep = now
	w.escalatedSum += escalated
	w.mu.Unlock()

	if escalated > 0 {
		w.logger.Info("SLA sweep completed",
			zap.Int("overdue_tasks", len(tasks)),
			zap.Int("escalated", escalated))
	}
}

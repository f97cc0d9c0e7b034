package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/queue"
	"github.com/tejasbhor/civiclens-core/internal/pipeline"
)

// ReportWorkerConfig holds configuration for the report processing worker
type ReportWorkerConfig struct {
	Concurrency    int
	ProcessTimeout time.Duration
}

// DefaultReportWorkerConfig returns default configuration
func DefaultReportWorkerConfig() ReportWorkerConfig {
	return ReportWorkerConfig{
		Concurrency:    4,
		ProcessTimeout: 60 * time.Second,
	}
}

// deliveryQueue is the slice of the report queue the worker drives:
// consuming, retry scheduling, and dead-lettering.
type deliveryQueue interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Retry(ctx context.Context, d *amqp.Delivery, attempts int) error
	DeadLetter(ctx context.Context, d *amqp.Delivery, attempts int, reason string) error
	MaxAttempts() int
}

// reportProcessor runs the classification pipeline for one report.
type reportProcessor interface {
	Process(ctx context.Context, reportID int64, force bool) (pipeline.Outcome, error)
}

// ReportWorker consumes report ids from the work queue and runs the
// classification pipeline on each. Per-delivery failure handling follows the
// error taxonomy: malformed reports go straight to the dead-letter queue
// with the report flagged for review, transient failures go to the retry
// queue with exponential backoff, and deliveries that exhaust their
// attempts are parked dead-letter with the report flagged for review.
type ReportWorker struct {
	config ReportWorkerConfig

	queue        deliveryQueue
	orchestrator reportProcessor
	reportRepo   port.ReportRepository
	logger       *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	lastProcessed  time.Time
	processedCount int
	failedCount    int
	startTime      time.Time
	wg             sync.WaitGroup
}

// NewReportWorker creates a new report processing worker
func NewReportWorker(
	config ReportWorkerConfig,
	reportQueue deliveryQueue,
	orchestrator reportProcessor,
	reportRepo port.ReportRepository,
	logger *zap.Logger,
) *ReportWorker {
	return &ReportWorker{
		config:        config,
		queue:         reportQueue,
		orchestrator:  orchestrator,
		reportRepo:    reportRepo,
		logger:        logger,
		lastProcessed: time.Now(),
		startTime:     time.Now(),
	}
}

// Start begins consuming from the report queue
func (w *ReportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("report worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.startTime = time.Now()
	w.mu.Unlock()

	msgs, err := w.queue.Consume(w.Name())
	if err != nil {
		w.mu.Lock()
		w.isRunning = false
		w.mu.Unlock()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("ReportWorker started",
		zap.Int("concurrency", w.config.Concurrency),
		zap.Duration("process_timeout", w.config.ProcessTimeout))

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.consumeLoop(msgs)
	}

	return nil
}

// Stop gracefully terminates the worker
func (w *ReportWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.logger.Info("ReportWorker stopped",
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))
	return nil
}

// Name returns the worker name for identification
func (w *ReportWorker) Name() string {
	return "ReportWorker"
}

// Status reports liveness and throughput for the health endpoint
func (w *ReportWorker) Status() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return map[string]interface{}{
		"running":         w.isRunning,
		"processed_count": w.processedCount,
		"failed_count":    w.failedCount,
		"last_processed":  w.lastProcessed,
		"uptime_seconds":  int(time.Since(w.startTime).Seconds()),
	}
}

func (w *ReportWorker) consumeLoop(msgs <-chan amqp.Delivery) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			w.handleDelivery(&d)
		}
	}
}

func (w *ReportWorker) handleDelivery(d *amqp.Delivery) {
	var msg queue.ReportMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// Not retryable: the payload itself is broken. Park it where an
		// operator can inspect it instead of discarding.
		w.logger.Error("Dead-lettering unparseable message", zap.Error(err))
		if dlErr := w.queue.DeadLetter(w.ctx, d, queue.Attempts(d), err.Error()); dlErr != nil {
			w.logger.Error("Failed to dead-letter unparseable message", zap.Error(dlErr))
			w.nack(d)
			return
		}
		w.ack(d)
		w.recordFailure()
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.ProcessTimeout)
	defer cancel()

	outcome, err := w.orchestrator.Process(ctx, msg.ReportID, msg.Force)
	if err == nil {
		w.logger.Info("Report processed",
			zap.Int64("report_id", msg.ReportID),
			zap.String("outcome", string(outcome)))
		w.ack(d)
		w.recordSuccess()
		return
	}

	if pipeline.IsMalformed(err) {
		// The report cannot be processed as-is: no retries, straight to the
		// dead-letter queue, and the report flagged for a human.
		w.logger.Warn("Report malformed, dead-lettering",
			zap.Int64("report_id", msg.ReportID),
			zap.Error(err))
		if dlErr := w.queue.DeadLetter(ctx, d, queue.Attempts(d), err.Error()); dlErr != nil {
			w.logger.Error("Failed to dead-letter malformed delivery", zap.Error(dlErr))
			w.nack(d)
			return
		}
		if ferr := w.reportRepo.SetNeedsReview(context.WithoutCancel(ctx), msg.ReportID, true); ferr != nil {
			w.logger.Error("Failed to flag malformed report",
				zap.Int64("report_id", msg.ReportID),
				zap.Error(ferr))
		}
		w.ack(d)
		w.recordFailure()
		return
	}

	attempts := queue.Attempts(d) + 1
	if attempts >= w.queue.MaxAttempts() {
		w.logger.Error("Report processing exhausted attempts, dead-lettering",
			zap.Int64("report_id", msg.ReportID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		if dlErr := w.queue.DeadLetter(ctx, d, attempts, err.Error()); dlErr != nil {
			w.logger.Error("Failed to dead-letter delivery", zap.Error(dlErr))
			w.nack(d)
			return
		}
		if ferr := w.reportRepo.SetNeedsReview(context.WithoutCancel(ctx), msg.ReportID, true); ferr != nil {
			w.logger.Error("Failed to flag dead-lettered report",
				zap.Int64("report_id", msg.ReportID),
				zap.Error(ferr))
		}
		w.ack(d)
		w.recordFailure()
		return
	}

	w.logger.Warn("Report processing failed, scheduling retry",
		zap.Int64("report_id", msg.ReportID),
		zap.Int("attempts", attempts),
		zap.Error(err))
	if rErr := w.queue.Retry(ctx, d, attempts); rErr != nil {
		w.logger.Error("Failed to schedule retry", zap.Error(rErr))
		// Requeue on the broker side so the message is not lost.
		w.nack(d)
		return
	}
	w.ack(d)
	w.recordFailure()
}

func (w *ReportWorker) ack(d *amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		w.logger.Error("Failed to ack delivery", zap.Error(err))
	}
}

func (w *ReportWorker) nack(d *amqp.Delivery) {
	if err := d.Nack(false, true); err != nil {
		w.logger.Error("Failed to nack delivery", zap.Error(err))
	}
}

func (w *ReportWorker) recordSuccess() {
	w.mu.Lock()
	w.processedCount++
	w.lastProcessed = time.Now()
	w.mu.Unlock()
}

func (w *ReportWorker) recordFailure() {
	w.mu.Lock()
	w.failedCount++
	w.lastProcessed = time.Now()
	w.mu.Unlock()
}

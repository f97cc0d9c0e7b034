package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
)

const attemptsHeader = "x-attempts"

// ReportMessage is the wire payload for one unit of pipeline work
type ReportMessage struct {
	ReportID   int64     `json:"report_id"`
	Force      bool      `json:"force"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ReportQueue implements port.ReportQueue on RabbitMQ
type ReportQueue struct {
	client *Client
	logger *zap.Logger
}

// NewReportQueue creates the queue facade over an established client
func NewReportQueue(client *Client, logger *zap.Logger) *ReportQueue {
	return &ReportQueue{client: client, logger: logger}
}

// Publish enqueues a report id for processing. Depth never causes rejection.
func (q *ReportQueue) Publish(ctx context.Context, reportID int64, force bool) error {
	msg := ReportMessage{ReportID: reportID, Force: force, EnqueuedAt: time.Now().UTC()}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal report message: %w", err)
	}

	err = q.client.channel.PublishWithContext(ctx,
		"",
		q.client.config.ReportQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      amqp.Table{attemptsHeader: int32(0)},
		})
	if err != nil {
		q.logger.Error("Failed to publish report message",
			zap.Int64("report_id", reportID),
			zap.Error(err))
		return fmt.Errorf("failed to publish report message: %w", err)
	}
	return nil
}

// Stats reads current queue depths via passive declares
func (q *ReportQueue) Stats(ctx context.Context) (*port.QueueStats, error) {
	stats := &port.QueueStats{}
	for _, probe := range []struct {
		name string
		dst  *int
	}{
		{q.client.config.ReportQueue, &stats.Ready},
		{q.client.config.RetryQueue, &stats.Retrying},
		{q.client.config.DeadLetterQueue, &stats.DeadLetter},
	} {
		state, err := q.client.channel.QueueDeclarePassive(probe.name, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect queue %s: %w", probe.name, err)
		}
		*probe.dst = state.Messages
	}
	return stats, nil
}

// Consume starts delivering report messages to the given consumer tag
func (q *ReportQueue) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	msgs, err := q.client.channel.Consume(
		q.client.config.ReportQueue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume report queue: %w", err)
	}
	return msgs, nil
}

// Retry republishes a delivery onto the retry queue with an exponential
// per-message TTL. The broker routes it back to the report queue on expiry.
func (q *ReportQueue) Retry(ctx context.Context, d *amqp.Delivery, attempts int) error {
	delay := q.backoff(attempts)
	headers := amqp.Table{attemptsHeader: int32(attempts)}

	err := q.client.channel.PublishWithContext(ctx,
		"",
		q.client.config.RetryQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Timestamp:    time.Now(),
			Headers:      headers,
			Expiration:   fmt.Sprintf("%d", delay.Milliseconds()),
		})
	if err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}
	q.logger.Info("Scheduled report retry",
		zap.Int("attempts", attempts),
		zap.Duration("delay", delay))
	return nil
}

// DeadLetter parks a delivery on the dead letter queue after attempts are
// exhausted
func (q *ReportQueue) DeadLetter(ctx context.Context, d *amqp.Delivery, attempts int, reason string) error {
	headers := amqp.Table{
		attemptsHeader: int32(attempts),
		"x-reason":     reason,
	}
	err := q.client.channel.PublishWithContext(ctx,
		"",
		q.client.config.DeadLetterQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Timestamp:    time.Now(),
			Headers:      headers,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to dead letter queue: %w", err)
	}
	return nil
}

// MaxAttempts returns the configured attempt limit
func (q *ReportQueue) MaxAttempts() int {
	return q.client.config.MaxAttempts
}

func (q *ReportQueue) backoff(attempts int) time.Duration {
	delay := q.client.config.RetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= q.client.config.RetryMaxDelay {
			return q.client.config.RetryMaxDelay
		}
	}
	if delay > q.client.config.RetryMaxDelay {
		delay = q.client.config.RetryMaxDelay
	}
	return delay
}

// Attempts extracts the attempt count header from a delivery, zero when the
// header is missing or malformed
func Attempts(d *amqp.Delivery) int {
	v, ok := d.Headers[attemptsHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

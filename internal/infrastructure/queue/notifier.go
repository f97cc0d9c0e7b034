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

// Notifier implements port.NotificationDispatcher by publishing lifecycle
// events to a topic exchange. Consumers (SMS, email, dashboards) bind their
// own queues; the core does not know about them.
type Notifier struct {
	client *Client
	logger *zap.Logger
}

// NewNotifier creates a notification dispatcher over an established client
func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Dispatch publishes one notification with routing key report.<event>
func (n *Notifier) Dispatch(ctx context.Context, notification *port.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	routingKey := fmt.Sprintf("report.%s", notification.Event)
	err = n.client.channel.PublishWithContext(ctx,
		n.client.config.NotificationExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		n.logger.Error("Failed to dispatch notification",
			zap.Int64("report_id", notification.ReportID),
			zap.String("event", notification.Event),
			zap.Error(err))
		return fmt.Errorf("failed to dispatch notification: %w", err)
	}
	n.logger.Debug("Dispatched notification",
		zap.Int64("report_id", notification.ReportID),
		zap.String("routing_key", routingKey))
	return nil
}

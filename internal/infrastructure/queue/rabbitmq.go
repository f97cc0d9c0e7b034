package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Config holds RabbitMQ connection and topology settings
type Config struct {
	URI                  string
	ReportQueue          string
	RetryQueue           string
	DeadLetterQueue      string
	NotificationExchange string
	Prefetch             int
	RetryBaseDelay       time.Duration
	RetryMaxDelay        time.Duration
	MaxAttempts          int
}

// Client wraps a RabbitMQ connection plus the declared pipeline topology.
// The retry queue has no consumers: messages parked there expire per-message
// and are dead-lettered back onto the report queue, which implements the
// delayed redelivery.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  Config
	logger  *zap.Logger
}

// NewClient connects to RabbitMQ and declares the pipeline topology
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(config.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if config.Prefetch > 0 {
		if err := ch.Qos(config.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	c := &Client{conn: conn, channel: ch, config: config, logger: logger}
	if err := c.declareTopology(); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Connected to RabbitMQ",
		zap.String("report_queue", config.ReportQueue),
		zap.String("retry_queue", config.RetryQueue),
		zap.String("dead_letter_queue", config.DeadLetterQueue))
	return c, nil
}

func (c *Client) declareTopology() error {
	// Work queue. Failed deliveries are re-published explicitly; the broker
	// level dead-letter config is only on the retry queue.
	if _, err := c.channel.QueueDeclare(c.config.ReportQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare report queue: %w", err)
	}

	// Retry queue: expired messages route back to the report queue via the
	// default exchange.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": c.config.ReportQueue,
	}
	if _, err := c.channel.QueueDeclare(c.config.RetryQueue, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	// Parking queue for messages that exhausted their attempts. Drained by
	// operators, never by workers.
	if _, err := c.channel.QueueDeclare(c.config.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	if c.config.NotificationExchange != "" {
		if err := c.channel.ExchangeDeclare(c.config.NotificationExchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare notification exchange: %w", err)
		}
	}
	return nil
}

// Channel exposes the underlying channel for consumers
func (c *Client) Channel() *amqp.Channel {
	return c.channel
}

// Config returns the topology settings the client was built with
func (c *Client) Config() Config {
	return c.config
}

// Close tears down the channel and connection
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

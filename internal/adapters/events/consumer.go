package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kisanmandi/bidledger/internal/domain/bids"
)

const notificationQueue = "bid_notifications"

// NotificationSink receives decoded bid events for delivery to the parties.
// Delivery is fire-and-forget from the negotiation core's perspective.
type NotificationSink interface {
	Notify(ctx context.Context, event *bids.Event) error
}

// LogSink is the default sink: it records each notification in the service
// log. Real push/SMS delivery hangs off the same interface.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed notification sink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the notification
func (s *LogSink) Notify(_ context.Context, event *bids.Event) error {
	s.logger.Info("notification",
		"event_type", event.Type,
		"bid_id", event.Bid.ID,
		"product_id", event.Bid.ProductID,
		"buyer_id", event.Bid.BuyerID,
		"seller_id", event.Bid.SellerID,
		"status", event.Bid.Status,
	)
	return nil
}

// NotificationConsumer consumes bid events from the broker and hands them to
// the notification sink
type NotificationConsumer struct {
	conn   *amqp.Connection
	sink   NotificationSink
	logger *slog.Logger
}

// NewNotificationConsumer creates a new notification consumer
func NewNotificationConsumer(conn *amqp.Connection, sink NotificationSink, logger *slog.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		conn:   conn,
		sink:   sink,
		logger: logger,
	}
}

// Run starts the consumer loop
func (c *NotificationConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		notificationQueue, // queue
		"",                // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for bid events...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *NotificationConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var event bids.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("Failed to decode event", "routing_key", d.RoutingKey, "error", err)
		// Undecodable now means undecodable forever: drop without requeue.
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if !event.Type.IsValid() || event.Bid == nil {
		c.logger.Error("Discarding malformed event", "routing_key", d.RoutingKey)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if err := c.sink.Notify(ctx, &event); err != nil {
		c.logger.Error("Failed to deliver notification", "event_id", event.ID, "error", err)
		// Requeue for another attempt.
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

func (c *NotificationConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		notificationQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return err
	}

	// All bid events fan into the notification queue.
	return ch.QueueBind(notificationQueue, "bid.*", Exchange, false, nil)
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// bookRoutingKey matches every book event on the topic exchange.
const bookRoutingKey = "book.*"

// ErrConsumerClosed is returned by Consume when the broker closes the delivery channel.
var ErrConsumerClosed = errors.New("rabbitmq delivery channel closed")

// Handler processes one decoded event. A returned error causes the message to
// be requeued once.
type Handler func(ctx context.Context, event Event) error

// Consumer receives book events from the exchange on a private, auto-deleted queue.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	tag     string
	log     *zap.Logger
}

// NewConsumer connects to RabbitMQ and declares the events exchange.
func NewConsumer(url, tag string, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("Consumer connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Consumer{
		conn:    conn,
		channel: ch,
		tag:     tag,
		log:     log,
	}, nil
}

// Consume delivers every book event to handle until ctx is done.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	queue, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(queue.Name, bookRoutingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", bookRoutingKey, err)
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		c.tag, // consumer tag
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("Listening for events", zap.String("queue", queue.Name), zap.String("routing_key", bookRoutingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrConsumerClosed
			}
			c.handleMessage(ctx, msg, handle)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery, handle Handler) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.Warn("Dropping malformed event",
			zap.String("routing_key", msg.RoutingKey),
			zap.Error(err),
		)
		msg.Nack(false, false)
		return
	}

	if err := handle(ctx, event); err != nil {
		c.log.Error("Failed to handle event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		// Redelivered messages are not requeued a second time.
		msg.Nack(false, !msg.Redelivered)
		return
	}

	msg.Ack(false)
}

// Close closes the consumer connection
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

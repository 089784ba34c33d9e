package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/requestid"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "bookstore.events"
	exchangeType = "topic"

	// Event types, also used as routing keys
	EventTypeBookCreated = "book.created"
	EventTypeBookUpdated = "book.updated"
	EventTypeBookDeleted = "book.deleted"

	eventVersion = "1.0.0"

	// Retry configuration
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger
}

// Event represents a domain event
type Event struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	EventVersion  string                 `json:"event_version"`
	Timestamp     string                 `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
}

// NewPublisher creates a new event publisher
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Publisher confirms, so a publish only succeeds once the broker has the message
	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("Connected to RabbitMQ", zap.String("exchange", exchangeName))

	return &Publisher{
		conn:    conn,
		channel: channel,
		log:     log,
	}, nil
}

// NewBookEvent builds the event envelope for a change to book
func NewBookEvent(ctx context.Context, eventType string, book *db.Book) Event {
	return Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: requestid.FromContext(ctx),
		Payload: map[string]interface{}{
			"id":             book.ID,
			"title":          book.Title,
			"author":         book.Author,
			"date_published": book.DatePublished.String(),
			"cover_image":    book.CoverImage,
		},
	}
}

// PublishBookCreated publishes a book created event
func (p *Publisher) PublishBookCreated(ctx context.Context, book *db.Book) error {
	return p.publishWithRetry(ctx, NewBookEvent(ctx, EventTypeBookCreated, book))
}

// PublishBookUpdated publishes a book updated event carrying the new field values
func (p *Publisher) PublishBookUpdated(ctx context.Context, book *db.Book) error {
	return p.publishWithRetry(ctx, NewBookEvent(ctx, EventTypeBookUpdated, book))
}

// PublishBookDeleted publishes a book deleted event carrying the removed record
func (p *Publisher) PublishBookDeleted(ctx context.Context, book *db.Book) error {
	return p.publishWithRetry(ctx, NewBookEvent(ctx, EventTypeBookDeleted, book))
}

// publishWithRetry publishes an event with exponential backoff retry
func (p *Publisher) publishWithRetry(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := event.EventType
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = nextBackoff(backoff)
			}
		}

		confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(
			ctx,
			exchangeName,
			routingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				Timestamp:     time.Now(),
				MessageId:     event.EventID,
				CorrelationId: event.CorrelationID,
				Body:          body,
				Headers: amqp.Table{
					"event_type":    event.EventType,
					"event_version": event.EventVersion,
				},
			},
		)
		if err != nil {
			lastErr = err
			p.log.Warn("Failed to publish event, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		confirmCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
		acked, err := confirmation.WaitContext(confirmCtx)
		cancel()

		switch {
		case err == nil && acked:
			p.log.Info("Event published successfully",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
			)
			return nil
		case err == nil:
			lastErr = fmt.Errorf("event not acknowledged")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			lastErr = fmt.Errorf("confirmation timeout: %w", err)
		}

		p.log.Warn("Event publish not confirmed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	p.log.Error("Failed to publish event after retries",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// IsHealthy checks if the publisher connection is healthy
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes the publisher connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	p.log.Info("Publisher closed")
	return nil
}

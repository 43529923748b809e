package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange carrying relay lifecycle events.
const ExchangeName = "qride.relay"

// Routing keys for relay lifecycle events.
const (
	MessageQueued = "relay.message.queued"
	MessageSent   = "relay.message.sent"
	MessageFailed = "relay.message.failed"
)

// RelayEvent is the payload published for each relay lifecycle transition.
// Message text is deliberately omitted; (code, messageId) is enough for
// downstream consumers to correlate.
type RelayEvent struct {
	MessageID  string    `json:"messageId"`
	Code       string    `json:"code"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits relay lifecycle events to a RabbitMQ topic exchange.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewPublisher connects and declares the exchange.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: ch}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Publish emits one event with the given routing key. A nil publisher is a
// no-op so callers can treat event emission as optional.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event RelayEvent) error {
	if p == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
}

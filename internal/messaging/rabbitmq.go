package messaging

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const notificationExchange = "notification_events"

// Publisher sends notification events to the out-of-band delivery
// pipeline (email/SMS workers). Delivery is best effort; callers treat
// publish failures as log-only.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// amqpChannel is the part of *amqp091.Channel the producer depends on.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	Close() error
}

// EventProducer holds the RabbitMQ connection and channel used for
// publishing notification events. Publishers run on multiple
// goroutines; the mutex keeps the channel-reopen path from racing
// them.
type EventProducer struct {
	conn    *amqp091.Connection
	mu      sync.Mutex
	channel amqpChannel
}

// NewEventProducer dials RabbitMQ with a bounded timeout so startup
// does not hang when the broker is down.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(notificationExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a JSON message to the notification exchange. On a
// channel-level failure it reopens the channel once and retries.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, notificationExchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	log.Printf("[MESSAGING] Publish failed, reopening channel: %v", err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return err
	}
	p.channel = ch
	if exErr := p.channel.ExchangeDeclare(notificationExchange, "topic", true, false, false, false, nil); exErr != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, notificationExchange, routingKey, false, false, msg)
}

// Close gracefully closes the channel and connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopProducer is used when RabbitMQ is unavailable at startup so the
// server can still serve requests; events are dropped with a warning.
type NoopProducer struct{}

func (p *NoopProducer) Publish(ctx context.Context, routingKey string, body any) error {
	log.Printf("[MESSAGING] Broker unavailable, event dropped: %s", routingKey)
	return nil
}

func (p *NoopProducer) Close() {}

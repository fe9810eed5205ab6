package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"staybook/internal/infra/outbox"
)

// Publisher relays outbox messages to a durable topic exchange named after
// the relay topic. The routing key is the CloudEvent type so that consumers
// can bind per event.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: url required")
	}
	p := &Publisher{url: url, declared: make(map[string]bool)}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if !p.declared[topic] {
		if err := p.ch.ExchangeDeclare(topic, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: declare exchange %s: %w", topic, err)
		}
		p.declared[topic] = true
	}
	pub := buildPublishing(key, payload, headers)
	if err := p.ch.PublishWithContext(ctx, topic, routingKey(key, headers), false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.declared = make(map[string]bool)
	return nil
}

func buildPublishing(key string, payload []byte, headers map[string]string) amqp.Publishing {
	table := amqp.Table{"booking_id": key}
	for k, v := range headers {
		table[k] = v
	}
	contentType := headers["content-type"]
	if contentType == "" {
		contentType = "application/json"
	}
	return amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    headers["ce-id"],
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         payload,
	}
}

func routingKey(key string, headers map[string]string) string {
	if t := headers["ce-type"]; t != "" {
		return t
	}
	return key
}

var _ outbox.Producer = (*Publisher)(nil)

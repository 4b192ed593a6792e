package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

// QueuePublisher hands notifications to a durable RabbitMQ queue for
// downstream consumers (email, billing). The connection is opened lazily and
// re-dialed after a failure.
type QueuePublisher struct {
	url   string
	queue string
	log   logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueuePublisher(url, queue string, log logger.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, queue: queue, log: log}
}

func (p *QueuePublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	msg, err := buildPublishing(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.log.Error("Failed to publish notification to queue", "queue", p.queue, "notification_id", n.ID, "error", err)
		p.reset()
		return fmt.Errorf("rabbitmq: publish %s: %w", n.ID, err)
	}
	return nil
}

// channel returns the open channel, dialing and declaring the queue first when
// needed. Callers hold p.mu.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", p.queue, err)
	}

	p.log.Info("Connected to RabbitMQ", "queue", p.queue)
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func buildPublishing(n *domain.Notification) (amqp.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, err
	}

	priority := uint8(0)
	switch n.Priority {
	case domain.PriorityHigh:
		priority = 5
	case domain.PriorityUrgent:
		priority = 9
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Type:         string(n.Type),
		Priority:     priority,
		Timestamp:    n.CreatedAt.UTC(),
		Body:         body,
	}, nil
}

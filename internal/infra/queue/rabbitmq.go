package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// RabbitEventQueue — очередь событий аналитики поверх AMQP.
type RabbitEventQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.EventQueue = (*RabbitEventQueue)(nil)

// NewRabbitEventQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitEventQueue(amqpURL, queue string) (*RabbitEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitEventQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует событие в очередь.
func (q *RabbitEventQueue) Enqueue(ctx context.Context, event domain.ReplyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Pop блокирующе читает событие из очереди.
func (q *RabbitEventQueue) Pop(ctx context.Context) (domain.ReplyEvent, error) {
	deliveries, err := q.consumer()
	if err != nil {
		return domain.ReplyEvent{}, err
	}
	select {
	case <-ctx.Done():
		return domain.ReplyEvent{}, ctx.Err()
	case delivery, ok := <-deliveries:
		if !ok {
			return domain.ReplyEvent{}, errors.New("amqp: канал доставки закрыт")
		}
		var event domain.ReplyEvent
		if err := json.Unmarshal(delivery.Body, &event); err != nil {
			_ = delivery.Nack(false, false)
			return domain.ReplyEvent{}, fmt.Errorf("decode event: %w", err)
		}
		if err := delivery.Ack(false); err != nil {
			return domain.ReplyEvent{}, fmt.Errorf("ack event: %w", err)
		}
		return event, nil
	}
}

func (q *RabbitEventQueue) consumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitEventQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

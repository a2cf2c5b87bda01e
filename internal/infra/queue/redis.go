package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// RedisEventQueue — очередь событий аналитики на базе Redis lists.
// Используется, когда RabbitMQ не сконфигурирован.
type RedisEventQueue struct {
	client *redis.Client
	key    string
}

var _ domain.EventQueue = (*RedisEventQueue)(nil)

// NewRedisEventQueue создаёт очередь по указанному ключу.
func NewRedisEventQueue(client *redis.Client, key string) *RedisEventQueue {
	return &RedisEventQueue{client: client, key: key}
}

// Enqueue публикует событие в очередь.
func (q *RedisEventQueue) Enqueue(ctx context.Context, event domain.ReplyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "queue_push", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Pop блокирующе читает событие из очереди.
func (q *RedisEventQueue) Pop(ctx context.Context) (domain.ReplyEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ReplyEvent{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ReplyEvent{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ReplyEvent{}, err
		}
		if len(res) != 2 {
			return domain.ReplyEvent{}, errors.New("redis queue: unexpected response")
		}
		var event domain.ReplyEvent
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			return domain.ReplyEvent{}, fmt.Errorf("decode event: %w", err)
		}
		return event, nil
	}
}

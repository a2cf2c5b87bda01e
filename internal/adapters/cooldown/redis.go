package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// DefaultWindow — пауза между автоответами одному отправителю.
const DefaultWindow = 5 * time.Minute

// RedisTracker реализует кулдаун через Redis: ключ с TTL на пару
// (владелец, отправитель). Плоское окно, без затухания.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
}

var _ domain.CooldownTracker = (*RedisTracker)(nil)

// NewRedisTracker создаёт трекер поверх клиента Redis.
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{client: client, window: window}
}

func cooldownKey(ownerID, senderID int64) string {
	return fmt.Sprintf("cooldown:%d:%d", ownerID, senderID)
}

// ShouldSuppress проверяет, живо ли окно кулдауна отправителя.
func (t *RedisTracker) ShouldSuppress(ctx context.Context, ownerID, senderID int64, _ time.Time) (bool, error) {
	start := time.Now()
	exists, err := t.client.Exists(ctx, cooldownKey(ownerID, senderID)).Result()
	metrics.ObserveNetworkRequest("redis", "cooldown_check", "cooldown", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка кулдауна: %w", err)
	}
	return exists > 0, nil
}

// RecordSent запускает окно кулдауна; вызывается после фактической отправки.
func (t *RedisTracker) RecordSent(ctx context.Context, ownerID, senderID int64, _ time.Time) error {
	start := time.Now()
	err := t.client.Set(ctx, cooldownKey(ownerID, senderID), "1", t.window).Err()
	metrics.ObserveNetworkRequest("redis", "cooldown_record", "cooldown", start, err)
	if err != nil {
		return fmt.Errorf("запись кулдауна: %w", err)
	}
	return nil
}

package mtproto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"tg-autoreply-userbot/internal/infra/metrics"
)

// DefaultPresenceTTL — как долго доверять последнему известному статусу,
// прежде чем переспросить Telegram.
const DefaultPresenceTTL = 30 * time.Second

// presenceCache хранит последний известный онлайн-статус владельца.
// Обновляется двумя путями: пассивно из UpdateUserStatus и активно
// опросом users.getUsers, когда кэш устарел.
type presenceCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	online    bool
	checkedAt time.Time
}

func newPresenceCache(ttl time.Duration) *presenceCache {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &presenceCache{ttl: ttl}
}

func (p *presenceCache) set(online bool) {
	p.mu.Lock()
	p.online = online
	p.checkedAt = time.Now()
	p.mu.Unlock()
}

func (p *presenceCache) cached() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkedAt.IsZero() || time.Since(p.checkedAt) >= p.ttl {
		return false, false
	}
	return p.online, true
}

// IsOwnerOnline реализует domain.PresenceChecker.
func (c *Client) IsOwnerOnline(ctx context.Context) (bool, error) {
	if online, ok := c.presence.cached(); ok {
		return online, nil
	}

	start := time.Now()
	users, err := c.api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	metrics.ObserveNetworkRequest("telegram", "users_get_users", "self", start, err)
	if err != nil {
		return false, fmt.Errorf("статус владельца: %w", err)
	}

	online := false
	if len(users) > 0 {
		if user, ok := users[0].(*tg.User); ok {
			online = statusOnline(user.Status, time.Now())
		}
	}
	c.presence.set(online)
	return online, nil
}

// statusOnline трактует статус консервативно: онлайном считается только
// явный UserStatusOnline с неистёкшим сроком.
func statusOnline(status tg.UserStatusClass, now time.Time) bool {
	online, ok := status.(*tg.UserStatusOnline)
	if !ok {
		return false
	}
	return int64(online.Expires) > now.Unix()
}

package cooldown

import (
	"context"
	"sync"
	"time"

	"tg-autoreply-userbot/internal/domain"
)

// MemoryTracker — кулдаун в памяти процесса. Используется, когда Redis
// не сконфигурирован; состояние теряется при перезапуске, что допустимо
// для эфемерного ограничителя.
type MemoryTracker struct {
	mu      sync.Mutex
	window  time.Duration
	lastRun map[[2]int64]time.Time
}

var _ domain.CooldownTracker = (*MemoryTracker)(nil)

// NewMemoryTracker создаёт трекер в памяти.
func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryTracker{window: window, lastRun: make(map[[2]int64]time.Time)}
}

// ShouldSuppress проверяет окно от момента последней отправки.
func (t *MemoryTracker) ShouldSuppress(_ context.Context, ownerID, senderID int64, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastRun[[2]int64{ownerID, senderID}]
	if !ok {
		return false, nil
	}
	if now.Sub(last) >= t.window {
		// Просроченные записи подчищаются по мере обращения.
		delete(t.lastRun, [2]int64{ownerID, senderID})
		return false, nil
	}
	return true, nil
}

// RecordSent перезаписывает момент последней отправки.
func (t *MemoryTracker) RecordSent(_ context.Context, ownerID, senderID int64, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRun[[2]int64{ownerID, senderID}] = now
	return nil
}

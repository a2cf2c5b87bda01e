package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// ErrNothingPending возвращается, когда подтверждать или отменять нечего:
// подтверждения нет либо оно уже истекло.
var ErrNothingPending = errors.New("нет ожидающего подтверждения")

// DefaultTTL — срок жизни подтверждения.
const DefaultTTL = 60 * time.Second

// Result описывает выполненное по подтверждению действие.
type Result struct {
	Action   domain.ConfirmAction
	Category string
	Removed  int64
}

// Service — автомат подтверждений разрушительных операций:
// none → pending → {confirmed, cancelled, expired} → none.
// Истечение проверяется лениво при каждом обращении, фоновых таймеров нет.
type Service struct {
	confirmations domain.ConfirmationRepo
	rules         domain.RuleRepo
	ttl           time.Duration
	now           func() time.Time
}

// NewService создаёт автомат подтверждений.
func NewService(confirmations domain.ConfirmationRepo, rules domain.RuleRepo, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{confirmations: confirmations, rules: rules, ttl: ttl, now: time.Now}
}

// Pending возвращает живое подтверждение владельца. Истёкшее
// подтверждение удаляется на месте и считается отсутствующим.
func (s *Service) Pending(ctx context.Context, ownerID int64) (domain.PendingConfirmation, bool, error) {
	pending, err := s.confirmations.GetPending(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PendingConfirmation{}, false, nil
	}
	if err != nil {
		return domain.PendingConfirmation{}, false, fmt.Errorf("чтение подтверждения: %w", err)
	}
	if pending.Expired(s.now()) {
		metrics.IncConfirmation("expired")
		if err := s.confirmations.ClearPending(ctx, ownerID); err != nil {
			return domain.PendingConfirmation{}, false, fmt.Errorf("удаление истёкшего подтверждения: %w", err)
		}
		return domain.PendingConfirmation{}, false, nil
	}
	return pending, true, nil
}

// RequestRemoveCategory откладывает удаление всех правил категории.
// Новое подтверждение заменяет любое прежнее.
func (s *Service) RequestRemoveCategory(ctx context.Context, ownerID int64, category string) (domain.PendingConfirmation, error) {
	return s.request(ctx, domain.PendingConfirmation{
		OwnerID:  ownerID,
		Action:   domain.ConfirmRemoveCategory,
		Category: category,
	})
}

// RequestRemoveAll откладывает удаление всех правил владельца.
func (s *Service) RequestRemoveAll(ctx context.Context, ownerID int64) (domain.PendingConfirmation, error) {
	return s.request(ctx, domain.PendingConfirmation{
		OwnerID: ownerID,
		Action:  domain.ConfirmRemoveAll,
	})
}

func (s *Service) request(ctx context.Context, pending domain.PendingConfirmation) (domain.PendingConfirmation, error) {
	now := s.now()
	pending.CreatedAt = now
	pending.ExpiresAt = now.Add(s.ttl)
	if err := s.confirmations.SetPending(ctx, pending); err != nil {
		return domain.PendingConfirmation{}, fmt.Errorf("сохранение подтверждения: %w", err)
	}
	metrics.IncConfirmation("created")
	return pending, nil
}

// Confirm выполняет отложенное действие ровно один раз и сбрасывает
// автомат. Истёкшее или отсутствующее подтверждение — ErrNothingPending.
func (s *Service) Confirm(ctx context.Context, ownerID int64) (Result, error) {
	pending, ok, err := s.Pending(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrNothingPending
	}

	var removed int64
	switch pending.Action {
	case domain.ConfirmRemoveCategory:
		removed, err = s.rules.DeleteRulesByCategory(ctx, ownerID, pending.Category)
	case domain.ConfirmRemoveAll:
		removed, err = s.rules.DeleteAllRules(ctx, ownerID)
	default:
		err = fmt.Errorf("неизвестное действие подтверждения: %s", pending.Action)
	}
	if err != nil {
		return Result{}, fmt.Errorf("выполнение подтверждённого действия: %w", err)
	}

	if err := s.confirmations.ClearPending(ctx, ownerID); err != nil {
		return Result{}, fmt.Errorf("сброс подтверждения: %w", err)
	}
	metrics.IncConfirmation("confirmed")
	return Result{Action: pending.Action, Category: pending.Category, Removed: removed}, nil
}

// Cancel отменяет живое подтверждение без выполнения действия.
func (s *Service) Cancel(ctx context.Context, ownerID int64) (domain.PendingConfirmation, error) {
	pending, ok, err := s.Pending(ctx, ownerID)
	if err != nil {
		return domain.PendingConfirmation{}, err
	}
	if !ok {
		return domain.PendingConfirmation{}, ErrNothingPending
	}
	if err := s.confirmations.ClearPending(ctx, ownerID); err != nil {
		return domain.PendingConfirmation{}, fmt.Errorf("сброс подтверждения: %w", err)
	}
	metrics.IncConfirmation("cancelled")
	return pending, nil
}

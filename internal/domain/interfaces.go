package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, когда запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// RuleRepo управляет временными правилами. ListRules обязан возвращать
// правила в порядке создания: на этом порядке держится детерминированный
// выбор при пересекающихся окнах.
type RuleRepo interface {
	AddRule(ctx context.Context, rule TimeRule) error
	GetRule(ctx context.Context, ownerID int64, ruleID string) (TimeRule, error)
	ListRules(ctx context.Context, ownerID int64) ([]TimeRule, error)
	ListRulesByCategory(ctx context.Context, ownerID int64, category string) ([]TimeRule, error)
	UpdateRuleWindow(ctx context.Context, ownerID int64, ruleID string, startMinute, endMinute int) error
	DeleteRule(ctx context.Context, ownerID int64, ruleID string) error
	DeleteRulesByCategory(ctx context.Context, ownerID int64, category string) (int64, error)
	DeleteAllRules(ctx context.Context, ownerID int64) (int64, error)
}

// StateRepo хранит singleton-состояния владельца.
type StateRepo interface {
	GetBotState(ctx context.Context, ownerID int64) (BotState, error)
	SaveBotState(ctx context.Context, state BotState) error
	GetTempState(ctx context.Context, ownerID int64) (TempState, error)
	SaveTempState(ctx context.Context, state TempState) error
}

// ConfirmationRepo хранит отложенные подтверждения, по одному на владельца.
type ConfirmationRepo interface {
	SetPending(ctx context.Context, pending PendingConfirmation) error
	GetPending(ctx context.Context, ownerID int64) (PendingConfirmation, error)
	ClearPending(ctx context.Context, ownerID int64) error
}

// AnalyticsRepo пишет и агрегирует события отправленных автоответов.
type AnalyticsRepo interface {
	AppendReplyEvent(ctx context.Context, event ReplyEvent) error
	DaySummary(ctx context.Context, ownerID int64, date string) (DaySummary, error)
	TopSender(ctx context.Context, ownerID int64, date string) (SenderCount, error)
	RangeSummary(ctx context.Context, ownerID int64, fromDate, toDate string) ([]DaySummary, int, error)
}

// CooldownTracker — ограничитель частоты ответов одному отправителю.
// RecordSent вызывается только после фактической отправки.
type CooldownTracker interface {
	ShouldSuppress(ctx context.Context, ownerID, senderID int64, now time.Time) (bool, error)
	RecordSent(ctx context.Context, ownerID, senderID int64, now time.Time) error
}

// EventQueue — очередь событий аналитики между движком и воркером записи.
type EventQueue interface {
	Enqueue(ctx context.Context, event ReplyEvent) error
	Pop(ctx context.Context) (ReplyEvent, error)
}

// Messenger отправляет сообщения от имени аккаунта владельца.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// PresenceChecker сообщает реальный онлайн-статус владельца.
type PresenceChecker interface {
	IsOwnerOnline(ctx context.Context) (bool, error)
}

// OwnerNotifier — необязательный побочный канал уведомлений владельца
// (компаньон-бот). Реализация может быть no-op.
type OwnerNotifier interface {
	Notify(ctx context.Context, text string)
}

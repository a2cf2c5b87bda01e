package domain

import "time"

// MinutesPerDay — количество минут в сутках, верхняя граница minute-of-day.
const MinutesPerDay = 24 * 60

// TimeRule описывает ежедневное временное окно, привязанное к категории ответа.
// Начало окна включительно, конец — исключительно; EndMinute < StartMinute
// означает окно через полночь (например 22:00-06:00).
type TimeRule struct {
	ID          string
	OwnerID     int64
	StartMinute int
	EndMinute   int
	Category    string
	CreatedAt   time.Time
}

// Contains сообщает, попадает ли минута суток в окно правила.
func (r TimeRule) Contains(minute int) bool {
	if r.StartMinute == r.EndMinute {
		// Вырожденное окно считаем круглосуточным: иначе правило
		// невозможно было бы активировать вообще.
		return true
	}
	if r.StartMinute < r.EndMinute {
		return minute >= r.StartMinute && minute < r.EndMinute
	}
	return minute >= r.StartMinute || minute < r.EndMinute
}

// BotState хранит глобальные переключатели и дефолтное сообщение владельца.
type BotState struct {
	OwnerID            int64
	AutoReplyEnabled   bool
	CustomRulesEnabled bool
	DefaultMessage     string
}

// TempState описывает временный режим: принудительная категория, действующая
// до ручного сброса. SavedRulesEnabled запоминает, были ли временные правила
// включены до активации, чтобы /tempreset вернул всё как было.
type TempState struct {
	OwnerID           int64
	Category          string
	Active            bool
	SavedRulesEnabled bool
}

// ConfirmAction — тип отложенного разрушительного действия.
type ConfirmAction string

const (
	// ConfirmRemoveCategory — удаление всех правил категории.
	ConfirmRemoveCategory ConfirmAction = "remove_category"
	// ConfirmRemoveAll — удаление всех правил владельца.
	ConfirmRemoveAll ConfirmAction = "remove_all"
)

// PendingConfirmation — отложенное действие, ожидающее /confirm или /cancel.
// На владельца существует максимум одно; новое заменяет старое.
type PendingConfirmation struct {
	OwnerID   int64
	Action    ConfirmAction
	Category  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired сообщает, истекло ли подтверждение к моменту now.
func (p PendingConfirmation) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ReplyEvent — факт отправленного автоответа, единица аналитики.
// Записывается только при реальной отправке, подавленные события не считаются.
type ReplyEvent struct {
	OwnerID   int64     `json:"owner_id"`
	SenderID  int64     `json:"sender_id"`
	SentAt    time.Time `json:"sent_at"`
	Message   string    `json:"message"`
	LocalDate string    `json:"local_date"`
	LocalTime string    `json:"local_time"`
}

// DaySummary — агрегат аналитики за один день.
type DaySummary struct {
	Date          string
	Messages      int
	UniqueSenders int
}

// SenderCount — счётчик ответов конкретному отправителю.
type SenderCount struct {
	SenderID int64
	Count    int
}

// IncomingMessage — входящее личное сообщение, как его видит движок.
type IncomingMessage struct {
	ChatID     int64
	SenderID   int64
	Text       string
	ReceivedAt time.Time
	Outgoing   bool
	FromBot    bool
}

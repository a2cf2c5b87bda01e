package autoreply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/domain"
)

type stubPresence struct {
	online bool
	err    error
}

func (s *stubPresence) IsOwnerOnline(context.Context) (bool, error) { return s.online, s.err }

type stubStates struct {
	state    domain.BotState
	temp     domain.TempState
	stateErr error
	tempErr  error
}

func (s *stubStates) GetBotState(context.Context, int64) (domain.BotState, error) {
	return s.state, s.stateErr
}
func (s *stubStates) SaveBotState(context.Context, domain.BotState) error { return nil }
func (s *stubStates) GetTempState(context.Context, int64) (domain.TempState, error) {
	return s.temp, s.tempErr
}
func (s *stubStates) SaveTempState(context.Context, domain.TempState) error { return nil }

type stubRules struct {
	rules []domain.TimeRule
	err   error
}

func (s *stubRules) AddRule(context.Context, domain.TimeRule) error { return nil }
func (s *stubRules) GetRule(context.Context, int64, string) (domain.TimeRule, error) {
	return domain.TimeRule{}, domain.ErrNotFound
}
func (s *stubRules) ListRules(context.Context, int64) ([]domain.TimeRule, error) {
	return s.rules, s.err
}
func (s *stubRules) ListRulesByCategory(context.Context, int64, string) ([]domain.TimeRule, error) {
	return s.rules, s.err
}
func (s *stubRules) UpdateRuleWindow(context.Context, int64, string, int, int) error { return nil }
func (s *stubRules) DeleteRule(context.Context, int64, string) error                 { return nil }
func (s *stubRules) DeleteRulesByCategory(context.Context, int64, string) (int64, error) {
	return 0, nil
}
func (s *stubRules) DeleteAllRules(context.Context, int64) (int64, error) { return 0, nil }

type stubCooldown struct {
	suppress bool
	checkErr error
	recorded []int64
}

func (s *stubCooldown) ShouldSuppress(context.Context, int64, int64, time.Time) (bool, error) {
	return s.suppress, s.checkErr
}
func (s *stubCooldown) RecordSent(_ context.Context, _ int64, senderID int64, _ time.Time) error {
	s.recorded = append(s.recorded, senderID)
	return nil
}

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) SendMessage(_ context.Context, _ int64, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

type stubQueue struct {
	events []domain.ReplyEvent
}

func (s *stubQueue) Enqueue(_ context.Context, event domain.ReplyEvent) error {
	s.events = append(s.events, event)
	return nil
}
func (s *stubQueue) Pop(context.Context) (domain.ReplyEvent, error) {
	return domain.ReplyEvent{}, errors.New("пусто")
}

type fixture struct {
	presence *stubPresence
	states   *stubStates
	rules    *stubRules
	cooldown *stubCooldown
	sender   *stubSender
	queue    *stubQueue
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		presence: &stubPresence{},
		states: &stubStates{state: domain.BotState{
			OwnerID:          1,
			AutoReplyEnabled: true,
			DefaultMessage:   "я отвечу позже",
		}},
		rules:    &stubRules{},
		cooldown: &stubCooldown{},
		sender:   &stubSender{},
		queue:    &stubQueue{},
	}
	f.service = NewService(1, f.presence, f.states, f.rules, f.cooldown, f.sender, f.queue, time.UTC, zerolog.Nop())
	return f
}

func incomingAt(hour, minute int) domain.IncomingMessage {
	return domain.IncomingMessage{
		ChatID:     77,
		SenderID:   77,
		Text:       "привет",
		ReceivedAt: time.Date(2026, 8, 29, hour, minute, 0, 0, time.UTC),
	}
}

func TestOwnerOnlineSuppresses(t *testing.T) {
	f := newFixture()
	f.presence.online = true
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply {
		t.Fatalf("при владельце онлайн ответа быть не должно")
	}
	if decision.Reason != ReasonOwnerOnline {
		t.Fatalf("ожидали причину %s, получили %s", ReasonOwnerOnline, decision.Reason)
	}
	if len(f.sender.sent) != 0 || len(f.queue.events) != 0 {
		t.Fatalf("подавление не должно давать побочных эффектов")
	}
}

func TestDisabledSuppresses(t *testing.T) {
	f := newFixture()
	f.states.state.AutoReplyEnabled = false
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply || decision.Reason != ReasonDisabled {
		t.Fatalf("ожидали подавление из-за выключателя, получили %+v", decision)
	}
}

func TestCooldownSuppressesWithoutSideEffects(t *testing.T) {
	f := newFixture()
	f.cooldown.suppress = true
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply || decision.Reason != ReasonCooldown {
		t.Fatalf("ожидали подавление кулдауном, получили %+v", decision)
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("подавленный ответ не должен попадать в аналитику")
	}
	if len(f.cooldown.recorded) != 0 {
		t.Fatalf("кулдаун записывается только после отправки")
	}
}

func TestStoreErrorTreatedAsDisabled(t *testing.T) {
	f := newFixture()
	f.states.stateErr = errors.New("таймаут")
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply || decision.Reason != ReasonStoreUnavailable {
		t.Fatalf("недоступное хранилище должно подавлять ответ, получили %+v", decision)
	}
}

func TestCooldownErrorSuppresses(t *testing.T) {
	f := newFixture()
	f.cooldown.checkErr = errors.New("redis недоступен")
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply || decision.Reason != ReasonCooldownUnavailable {
		t.Fatalf("ошибка кулдауна должна подавлять ответ, получили %+v", decision)
	}
}

func TestTempOverrideBeatsTimeRules(t *testing.T) {
	f := newFixture()
	f.states.state.CustomRulesEnabled = true
	f.states.temp = domain.TempState{OwnerID: 1, Category: "lunch", Active: true}
	f.rules.rules = []domain.TimeRule{{ID: "r1", StartMinute: 0, EndMinute: 1439, Category: "work"}}

	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !decision.Reply {
		t.Fatalf("временный режим должен давать ответ")
	}
	lunchMsg, _ := domain.CategoryMessage("lunch")
	if decision.Text != lunchMsg {
		t.Fatalf("ожидали сообщение категории lunch, получили %q", decision.Text)
	}
}

func TestTempOverrideCustomText(t *testing.T) {
	f := newFixture()
	f.states.temp = domain.TempState{OwnerID: 1, Category: "в море без связи", Active: true}
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Text != "в море без связи" {
		t.Fatalf("свободный текст должен отправляться как есть, получили %q", decision.Text)
	}
}

func TestTimeRuleMatchAndDefaultFallback(t *testing.T) {
	f := newFixture()
	f.states.state.CustomRulesEnabled = true
	f.rules.rules = []domain.TimeRule{{ID: "r1", StartMinute: 540, EndMinute: 1020, Category: "work"}}

	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	workMsg, _ := domain.CategoryMessage("work")
	if !decision.Reply || decision.Text != workMsg {
		t.Fatalf("в 10:00 должно действовать правило work, получили %+v", decision)
	}

	decision, err = f.service.HandleIncoming(context.Background(), incomingAt(18, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !decision.Reply || decision.Text != "я отвечу позже" {
		t.Fatalf("в 18:00 должен уйти дефолтный ответ, получили %+v", decision)
	}
}

func TestRulesIgnoredWhenCustomDisabled(t *testing.T) {
	f := newFixture()
	f.states.state.CustomRulesEnabled = false
	f.rules.rules = []domain.TimeRule{{ID: "r1", StartMinute: 0, EndMinute: 1439, Category: "work"}}

	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Text != "я отвечу позже" {
		t.Fatalf("при выключенных правилах должен уходить дефолт, получили %q", decision.Text)
	}
}

func TestSendRecordsCooldownAndAnalytics(t *testing.T) {
	f := newFixture()
	decision, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !decision.Reply {
		t.Fatalf("ожидали отправленный ответ")
	}
	if len(f.cooldown.recorded) != 1 || f.cooldown.recorded[0] != 77 {
		t.Fatalf("после отправки должен записаться кулдаун отправителя")
	}
	if len(f.queue.events) != 1 {
		t.Fatalf("ожидали одно событие аналитики")
	}
	event := f.queue.events[0]
	if event.OwnerID != 1 || event.SenderID != 77 || event.Message != "я отвечу позже" {
		t.Fatalf("событие аналитики заполнено неверно: %+v", event)
	}
	if event.LocalDate == "" || event.LocalTime == "" {
		t.Fatalf("локальные дата и время должны быть заполнены")
	}
}

func TestSendErrorSkipsCooldownRecord(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("flood wait")
	if _, err := f.service.HandleIncoming(context.Background(), incomingAt(10, 0)); err == nil {
		t.Fatalf("ожидали ошибку отправки")
	}
	if len(f.cooldown.recorded) != 0 {
		t.Fatalf("кулдаун не должен записываться при неудачной отправке")
	}
	if len(f.queue.events) != 0 {
		t.Fatalf("аналитика не должна фиксировать неотправленный ответ")
	}
}

func TestOwnMessagesIgnored(t *testing.T) {
	f := newFixture()
	msg := incomingAt(10, 0)
	msg.SenderID = 1
	decision, err := f.service.HandleIncoming(context.Background(), msg)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decision.Reply {
		t.Fatalf("собственные сообщения не должны получать автоответ")
	}
	msg = incomingAt(10, 0)
	msg.FromBot = true
	if decision, _ := f.service.HandleIncoming(context.Background(), msg); decision.Reply {
		t.Fatalf("сообщения ботов не должны получать автоответ")
	}
}

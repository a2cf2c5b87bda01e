package autoreply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
	"tg-autoreply-userbot/internal/usecase/rules"
)

// Причины подавления ответа; попадают в метрики и логи.
const (
	ReasonOwnerOnline         = "owner_online"
	ReasonDisabled            = "disabled"
	ReasonCooldown            = "cooldown"
	ReasonNoMessage           = "no_message"
	ReasonPresenceUnavailable = "presence_unavailable"
	ReasonStoreUnavailable    = "store_unavailable"
	ReasonCooldownUnavailable = "cooldown_unavailable"
)

// Decision — терминальное состояние обработки одного входящего события.
type Decision struct {
	Reply  bool
	Reason string
	Source domain.MessageSource
	Text   string
}

// event — контекст одного входящего сообщения, проходящий через цепочку
// шлюзов. Поля заполняются по мере прохождения.
type event struct {
	msg    domain.IncomingMessage
	minute int
	state  domain.BotState
	temp   domain.TempState
}

type gate struct {
	name string
	eval func(ctx context.Context, ev *event) *Decision
}

// Service — движок автоответов: для каждого входящего личного сообщения
// решает, отвечать ли и каким текстом.
type Service struct {
	ownerID  int64
	presence domain.PresenceChecker
	states   domain.StateRepo
	rules    domain.RuleRepo
	cooldown domain.CooldownTracker
	sender   domain.Messenger
	queue    domain.EventQueue
	loc      *time.Location
	logger   zerolog.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewService создаёт движок автоответов.
func NewService(
	ownerID int64,
	presence domain.PresenceChecker,
	states domain.StateRepo,
	ruleRepo domain.RuleRepo,
	cooldown domain.CooldownTracker,
	sender domain.Messenger,
	queue domain.EventQueue,
	loc *time.Location,
	logger zerolog.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		ownerID:  ownerID,
		presence: presence,
		states:   states,
		rules:    ruleRepo,
		cooldown: cooldown,
		sender:   sender,
		queue:    queue,
		loc:      loc,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// HandleIncoming прогоняет событие через цепочку шлюзов и выполняет
// побочные эффекты при положительном решении. Шлюзы 1–4 и отправка
// выполняются под замком на пару (владелец, отправитель), чтобы два
// одновременных сообщения одного отправителя не прошли кулдаун вдвоём.
func (s *Service) HandleIncoming(ctx context.Context, msg domain.IncomingMessage) (Decision, error) {
	if msg.Outgoing || msg.FromBot || msg.SenderID == s.ownerID {
		return Decision{Reason: ReasonNoMessage}, nil
	}

	key := fmt.Sprintf("%d:%d", s.ownerID, msg.SenderID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	local := msg.ReceivedAt.In(s.loc)
	ev := &event{msg: msg, minute: local.Hour()*60 + local.Minute()}

	decision := s.evaluate(ctx, ev)
	if !decision.Reply {
		metrics.IncReplySuppressed(decision.Reason)
		s.logger.Debug().
			Int64("sender_id", msg.SenderID).
			Str("reason", decision.Reason).
			Msg("autoreply: ответ подавлен")
		return decision, nil
	}

	decision.Text = decision.Source.Resolve(ev.state.DefaultMessage)
	if decision.Text == "" {
		decision.Reply = false
		decision.Reason = ReasonNoMessage
		metrics.IncReplySuppressed(decision.Reason)
		return decision, nil
	}

	if err := s.sender.SendMessage(ctx, msg.ChatID, decision.Text); err != nil {
		metrics.SendErrorsTotal.Inc()
		return Decision{}, fmt.Errorf("отправка автоответа: %w", err)
	}
	metrics.IncReplySent()

	now := s.now()
	if err := s.cooldown.RecordSent(ctx, s.ownerID, msg.SenderID, now); err != nil {
		s.logger.Error().Err(err).Int64("sender_id", msg.SenderID).Msg("autoreply: не удалось записать кулдаун")
	}
	s.enqueueEvent(ctx, msg, decision.Text, now)

	return decision, nil
}

// evaluate проходит шлюзы строго по приоритету; первый вердикт
// терминален. Порядок цепочки и есть спецификация приоритетов.
func (s *Service) evaluate(ctx context.Context, ev *event) Decision {
	chain := []gate{
		{name: "presence", eval: s.gatePresence},
		{name: "switch", eval: s.gateGlobalSwitch},
		{name: "cooldown", eval: s.gateCooldown},
		{name: "temp", eval: s.gateTempOverride},
		{name: "rules", eval: s.gateTimeRules},
		{name: "default", eval: s.gateDefault},
	}
	for _, g := range chain {
		if decision := g.eval(ctx, ev); decision != nil {
			return *decision
		}
	}
	return Decision{Reason: ReasonNoMessage}
}

// gatePresence: пока владелец онлайн, автоответ не срабатывает. При
// недоступном статусе безопаснее промолчать, чем ответить при живом
// владельце.
func (s *Service) gatePresence(ctx context.Context, ev *event) *Decision {
	online, err := s.presence.IsOwnerOnline(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("autoreply: статус владельца недоступен")
		return &Decision{Reason: ReasonPresenceUnavailable}
	}
	if online {
		return &Decision{Reason: ReasonOwnerOnline}
	}
	return nil
}

// gateGlobalSwitch: недоступное хранилище трактуем как выключенный
// автоответ.
func (s *Service) gateGlobalSwitch(ctx context.Context, ev *event) *Decision {
	state, err := s.states.GetBotState(ctx, s.ownerID)
	if err != nil {
		s.logger.Error().Err(err).Msg("autoreply: не удалось прочитать состояние")
		return &Decision{Reason: ReasonStoreUnavailable}
	}
	ev.state = state
	if !state.AutoReplyEnabled {
		return &Decision{Reason: ReasonDisabled}
	}
	return nil
}

func (s *Service) gateCooldown(ctx context.Context, ev *event) *Decision {
	suppress, err := s.cooldown.ShouldSuppress(ctx, s.ownerID, ev.msg.SenderID, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Int64("sender_id", ev.msg.SenderID).Msg("autoreply: кулдаун недоступен")
		return &Decision{Reason: ReasonCooldownUnavailable}
	}
	if suppress {
		return &Decision{Reason: ReasonCooldown}
	}
	return nil
}

// gateTempOverride: активный временный режим бьёт временные правила.
// Ошибка чтения не фатальна, событие идёт дальше по цепочке.
func (s *Service) gateTempOverride(ctx context.Context, ev *event) *Decision {
	temp, err := s.states.GetTempState(ctx, s.ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Err(err).Msg("autoreply: временный режим недоступен")
		return nil
	}
	ev.temp = temp
	if !temp.Active || temp.Category == "" {
		return nil
	}
	return &Decision{Reply: true, Source: domain.CategorySource(temp.Category)}
}

// gateTimeRules: правила участвуют только при включённом режиме
// пользовательских правил. Ошибка чтения списка роняет событие в
// дефолтный ответ, а не в тишину.
func (s *Service) gateTimeRules(ctx context.Context, ev *event) *Decision {
	if !ev.state.CustomRulesEnabled {
		return nil
	}
	list, err := s.rules.ListRules(ctx, s.ownerID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("autoreply: не удалось прочитать правила")
		return nil
	}
	rule, ok := rules.Resolve(list, ev.minute)
	if !ok {
		return nil
	}
	return &Decision{Reply: true, Source: domain.CategorySource(rule.Category)}
}

func (s *Service) gateDefault(_ context.Context, _ *event) *Decision {
	return &Decision{Reply: true, Source: domain.DefaultSource()}
}

// enqueueEvent ставит событие аналитики в очередь. Потеря события при
// недоступной очереди допустима: аналитика не должна блокировать или
// ронять путь отправки.
func (s *Service) enqueueEvent(ctx context.Context, msg domain.IncomingMessage, text string, sentAt time.Time) {
	local := sentAt.In(s.loc)
	event := domain.ReplyEvent{
		OwnerID:   s.ownerID,
		SenderID:  msg.SenderID,
		SentAt:    sentAt.UTC(),
		Message:   text,
		LocalDate: local.Format("2006-01-02"),
		LocalTime: local.Format("15:04:05"),
	}
	if err := s.queue.Enqueue(ctx, event); err != nil {
		metrics.IncAnalyticsEvent("enqueue_error")
		s.logger.Error().Err(err).Msg("autoreply: не удалось поставить событие аналитики в очередь")
		return
	}
	metrics.IncAnalyticsEvent("enqueued")
}

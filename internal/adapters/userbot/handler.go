package userbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
	"tg-autoreply-userbot/internal/usecase/confirm"
	"tg-autoreply-userbot/internal/usecase/rules"
	"tg-autoreply-userbot/internal/usecase/stats"
)

const transientErrorReply = "⚠️ Временная ошибка хранилища, команда не выполнена. Попробуйте ещё раз."

// Handler — интерпретатор команд владельца. Получает текст сообщений из
// «Избранного», валидирует ввод и вызывает операции движка. Ошибки
// валидации превращаются в ответ владельцу, частичных мутаций не бывает.
type Handler struct {
	ownerID    int64
	selfChatID int64
	log        zerolog.Logger
	messenger  domain.Messenger
	states     domain.StateRepo
	rulesUC    *rules.Service
	confirmUC  *confirm.Service
	statsUC    *stats.Service
	notifier   domain.OwnerNotifier

	// Мутирующие команды сериализуются: гонка команды и чтения состояния
	// движком не должна давать половинчатых состояний.
	mu sync.Mutex
}

// NewHandler создаёт интерпретатор команд.
func NewHandler(
	ownerID, selfChatID int64,
	messenger domain.Messenger,
	states domain.StateRepo,
	rulesUC *rules.Service,
	confirmUC *confirm.Service,
	statsUC *stats.Service,
	notifier domain.OwnerNotifier,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		ownerID:    ownerID,
		selfChatID: selfChatID,
		messenger:  messenger,
		states:     states,
		rulesUC:    rulesUC,
		confirmUC:  confirmUC,
		statsUC:    statsUC,
		notifier:   notifier,
		log:        log,
	}
}

// HandleCommand разбирает и выполняет одну команду владельца.
// Первый токен — имя команды без учёта регистра, остальное — аргументы.
func (h *Handler) HandleCommand(ctx context.Context, text string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))

	// Голое «yes» равносильно /confirm.
	if name == "yes" {
		name = "/confirm"
	}
	if !strings.HasPrefix(name, "/") {
		return
	}
	metrics.IncCommand(strings.TrimPrefix(name, "/"))

	h.mu.Lock()
	defer h.mu.Unlock()

	switch name {
	case "/start", "/help":
		h.reply(ctx, helpText)
	case "/status":
		h.handleStatus(ctx)
	case "/categories":
		h.reply(ctx, domain.CategoriesHelp())
	case "/listcustom":
		h.handleListCustom(ctx)
	case "/listtemp":
		h.handleListTemp(ctx)
	case "/stats":
		h.handleStats(ctx, args)
	case "/confirm":
		h.handleConfirm(ctx)
	case "/cancel":
		h.handleCancel(ctx)
	case "/on":
		h.mutating(ctx, func() { h.handleSwitch(ctx, true) })
	case "/off":
		h.mutating(ctx, func() { h.handleSwitch(ctx, false) })
	case "/set":
		h.mutating(ctx, func() { h.handleSet(ctx, args) })
	case "/custom":
		h.mutating(ctx, func() { h.handleCustom(ctx, args) })
	case "/customedit":
		h.mutating(ctx, func() { h.handleCustomEdit(ctx, args) })
	case "/removecustom":
		h.mutating(ctx, func() { h.handleRemoveCustom(ctx, args) })
	case "/customremoveall":
		h.mutating(ctx, func() { h.handleRemoveAll(ctx) })
	case "/customon":
		h.mutating(ctx, func() { h.handleCustomSwitch(ctx, true) })
	case "/customoff":
		h.mutating(ctx, func() { h.handleCustomSwitch(ctx, false) })
	case "/temp":
		h.mutating(ctx, func() { h.handleTemp(ctx, args) })
	case "/tempreset":
		h.mutating(ctx, func() { h.handleTempReset(ctx) })
	default:
		h.reply(ctx, "Неизвестная команда. Список команд: /help")
	}
}

// mutating выполняет мутирующую команду, если нет живого подтверждения.
// Висящее подтверждение блокирует посторонние мутации, чтобы «yes» не
// оказался двусмысленным.
func (h *Handler) mutating(ctx context.Context, run func()) {
	_, pending, err := h.confirmUC.Pending(ctx, h.ownerID)
	if err != nil {
		h.log.Error().Err(err).Msg("userbot: не удалось проверить подтверждение")
		h.reply(ctx, transientErrorReply)
		return
	}
	if pending {
		h.reply(ctx, "Сначала завершите отложенное действие: /confirm или /cancel.")
		return
	}
	run()
}

func (h *Handler) handleStatus(ctx context.Context) {
	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	temp, err := h.states.GetTempState(ctx, h.ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.replyStoreError(ctx, err, "чтение временного режима")
		return
	}
	list, err := h.rulesUC.ListRules(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение правил")
		return
	}
	h.reply(ctx, statusText(state, temp, len(list)))
}

func (h *Handler) handleSwitch(ctx context.Context, enabled bool) {
	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	state.AutoReplyEnabled = enabled
	if err := h.states.SaveBotState(ctx, state); err != nil {
		h.replyStoreError(ctx, err, "сохранение состояния")
		return
	}
	if enabled {
		h.reply(ctx, "✅ Автоответы включены.")
	} else {
		h.reply(ctx, "⏸ Автоответы выключены.")
	}
}

func (h *Handler) handleSet(ctx context.Context, args string) {
	message := strings.TrimSpace(args)
	if message == "" {
		h.reply(ctx, "Использование: /set <текст дефолтного сообщения>")
		return
	}
	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	state.DefaultMessage = message
	if err := h.states.SaveBotState(ctx, state); err != nil {
		h.replyStoreError(ctx, err, "сохранение состояния")
		return
	}
	h.reply(ctx, "✅ Дефолтное сообщение обновлено.")
}

func (h *Handler) handleCustom(ctx context.Context, args string) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		h.reply(ctx, "Использование: /custom <ЧЧ:ММ-ЧЧ:ММ> <категория или текст>")
		return
	}
	category := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), parts[0]))
	rule, err := h.rulesUC.AddRule(ctx, h.ownerID, parts[0], category)
	if errors.Is(err, rules.ErrRangeInvalid) {
		h.reply(ctx, "Некорректный интервал. Формат: ЧЧ:ММ-ЧЧ:ММ, например 09:00-17:30.")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "добавление правила")
		return
	}
	h.reply(ctx, fmt.Sprintf("✅ Правило добавлено:\n%s\n\nУправление: /customedit %s <окно>, /removecustom %s",
		ruleLine(rule), shortID(rule.ID), shortID(rule.ID)))
}

func (h *Handler) handleListCustom(ctx context.Context) {
	list, err := h.rulesUC.ListRules(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение правил")
		return
	}
	h.reply(ctx, listText(list))
}

func (h *Handler) handleCustomEdit(ctx context.Context, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		h.reply(ctx, "Использование: /customedit <id> <ЧЧ:ММ-ЧЧ:ММ>")
		return
	}
	rule, err := h.rulesUC.UpdateWindow(ctx, h.ownerID, parts[0], parts[1])
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		h.reply(ctx, "Правило с таким идентификатором не найдено. Список: /listcustom")
	case errors.Is(err, rules.ErrAmbiguousRuleID):
		h.reply(ctx, "Идентификатор совпадает с несколькими правилами, уточните его.")
	case errors.Is(err, rules.ErrRangeInvalid):
		h.reply(ctx, "Некорректный интервал. Формат: ЧЧ:ММ-ЧЧ:ММ.")
	case err != nil:
		h.replyStoreError(ctx, err, "изменение правила")
	default:
		h.reply(ctx, "✅ Окно обновлено:\n"+ruleLine(rule))
	}
}

// handleRemoveCustom: одиночное правило по идентификатору удаляется
// сразу, удаление целой категории всегда проходит через подтверждение.
func (h *Handler) handleRemoveCustom(ctx context.Context, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		h.reply(ctx, "Использование: /removecustom <id|категория>")
		return
	}

	rule, err := h.rulesUC.DeleteRule(ctx, h.ownerID, target)
	if err == nil {
		h.reply(ctx, "🗑 Правило удалено:\n"+ruleLine(rule))
		return
	}
	if errors.Is(err, rules.ErrAmbiguousRuleID) {
		h.reply(ctx, "Идентификатор совпадает с несколькими правилами, уточните его.")
		return
	}
	if !errors.Is(err, rules.ErrRuleNotFound) {
		h.replyStoreError(ctx, err, "удаление правила")
		return
	}

	list, err := h.rulesUC.ListByCategory(ctx, h.ownerID, target)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение правил категории")
		return
	}
	if len(list) == 0 {
		h.reply(ctx, "Не нашёл ни правила, ни категории с таким именем. Список: /listcustom")
		return
	}
	if _, err := h.confirmUC.RequestRemoveCategory(ctx, h.ownerID, target); err != nil {
		h.replyStoreError(ctx, err, "создание подтверждения")
		return
	}
	h.notify(ctx, fmt.Sprintf("Запрошено удаление категории «%s» (%d правил)", target, len(list)))
	h.reply(ctx, fmt.Sprintf("⚠️ Будет удалено правил: %d (категория «%s»).\nПодтвердите: /confirm, отмена: /cancel. Запрос живёт 60 секунд.",
		len(list), target))
}

func (h *Handler) handleRemoveAll(ctx context.Context) {
	list, err := h.rulesUC.ListRules(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение правил")
		return
	}
	if len(list) == 0 {
		h.reply(ctx, "Правил и так нет.")
		return
	}
	if _, err := h.confirmUC.RequestRemoveAll(ctx, h.ownerID); err != nil {
		h.replyStoreError(ctx, err, "создание подтверждения")
		return
	}
	h.notify(ctx, fmt.Sprintf("Запрошено удаление всех правил (%d)", len(list)))
	h.reply(ctx, fmt.Sprintf("⚠️ Будут удалены ВСЕ правила (%d шт.).\nПодтвердите: /confirm, отмена: /cancel. Запрос живёт 60 секунд.", len(list)))
}

func (h *Handler) handleCustomSwitch(ctx context.Context, enabled bool) {
	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	state.CustomRulesEnabled = enabled
	if err := h.states.SaveBotState(ctx, state); err != nil {
		h.replyStoreError(ctx, err, "сохранение состояния")
		return
	}
	if enabled {
		h.reply(ctx, "✅ Временные правила включены.")
	} else {
		h.reply(ctx, "⏸ Временные правила выключены, действует дефолтное сообщение.")
	}
}

// handleTemp включает принудительную категорию. Флаг временных правил
// запоминается и гасится, /tempreset вернёт его как было.
func (h *Handler) handleTemp(ctx context.Context, args string) {
	category := strings.TrimSpace(args)
	if category == "" {
		h.reply(ctx, "Использование: /temp <категория или текст>. Категории: /categories")
		return
	}
	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	temp, err := h.states.GetTempState(ctx, h.ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.replyStoreError(ctx, err, "чтение временного режима")
		return
	}

	if !temp.Active {
		temp.SavedRulesEnabled = state.CustomRulesEnabled
	}
	temp.OwnerID = h.ownerID
	temp.Category = category
	temp.Active = true
	if err := h.states.SaveTempState(ctx, temp); err != nil {
		h.replyStoreError(ctx, err, "сохранение временного режима")
		return
	}
	if state.CustomRulesEnabled {
		state.CustomRulesEnabled = false
		if err := h.states.SaveBotState(ctx, state); err != nil {
			h.replyStoreError(ctx, err, "сохранение состояния")
			return
		}
	}

	source := domain.CategorySource(category)
	h.reply(ctx, fmt.Sprintf("⏱ Временный режим включён: «%s».\nОтвет: %s\nСброс: /tempreset",
		category, source.Resolve("")))
}

func (h *Handler) handleListTemp(ctx context.Context) {
	temp, err := h.states.GetTempState(ctx, h.ownerID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !temp.Active) {
		h.reply(ctx, "Временный режим выключен.")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "чтение временного режима")
		return
	}
	source := domain.CategorySource(temp.Category)
	h.reply(ctx, fmt.Sprintf("⏱ Временный режим активен: «%s».\nОтвет: %s", temp.Category, source.Resolve("")))
}

func (h *Handler) handleTempReset(ctx context.Context) {
	temp, err := h.states.GetTempState(ctx, h.ownerID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !temp.Active) {
		h.reply(ctx, "Временный режим и так выключен.")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "чтение временного режима")
		return
	}

	state, err := h.states.GetBotState(ctx, h.ownerID)
	if err != nil {
		h.replyStoreError(ctx, err, "чтение состояния")
		return
	}
	state.CustomRulesEnabled = temp.SavedRulesEnabled
	if err := h.states.SaveBotState(ctx, state); err != nil {
		h.replyStoreError(ctx, err, "сохранение состояния")
		return
	}

	temp.Active = false
	temp.Category = ""
	if err := h.states.SaveTempState(ctx, temp); err != nil {
		h.replyStoreError(ctx, err, "сохранение временного режима")
		return
	}
	h.reply(ctx, fmt.Sprintf("✅ Временный режим выключен. Временные правила: %s.", onOffRu(state.CustomRulesEnabled)))
}

func (h *Handler) handleConfirm(ctx context.Context) {
	result, err := h.confirmUC.Confirm(ctx, h.ownerID)
	if errors.Is(err, confirm.ErrNothingPending) {
		h.reply(ctx, "Нечего подтверждать: запроса нет или он истёк.")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "подтверждение")
		return
	}
	switch result.Action {
	case domain.ConfirmRemoveCategory:
		h.reply(ctx, fmt.Sprintf("🗑 Категория «%s» удалена, правил снято: %d.", result.Category, result.Removed))
	case domain.ConfirmRemoveAll:
		h.reply(ctx, fmt.Sprintf("🗑 Удалены все правила: %d шт.", result.Removed))
	}
	h.notify(ctx, fmt.Sprintf("Подтверждено удаление: %s (%d правил)", result.Action, result.Removed))
}

func (h *Handler) handleCancel(ctx context.Context) {
	_, err := h.confirmUC.Cancel(ctx, h.ownerID)
	if errors.Is(err, confirm.ErrNothingPending) {
		h.reply(ctx, "Отменять нечего.")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "отмена")
		return
	}
	h.reply(ctx, "❎ Действие отменено, правила не тронуты.")
}

func (h *Handler) handleStats(ctx context.Context, args string) {
	var report string
	var err error
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "", "today":
		report, err = h.statsUC.Today(ctx, h.ownerID)
	case "week":
		report, err = h.statsUC.Week(ctx, h.ownerID)
	default:
		h.reply(ctx, "Использование: /stats today или /stats week")
		return
	}
	if err != nil {
		h.replyStoreError(ctx, err, "статистика")
		return
	}
	h.reply(ctx, report)
}

func (h *Handler) reply(ctx context.Context, text string) {
	if err := h.messenger.SendMessage(ctx, h.selfChatID, text); err != nil {
		h.log.Error().Err(err).Msg("userbot: не удалось ответить владельцу")
	}
}

func (h *Handler) replyStoreError(ctx context.Context, err error, op string) {
	h.log.Error().Err(err).Str("op", op).Msg("userbot: ошибка хранилища")
	h.reply(ctx, transientErrorReply)
}

func (h *Handler) notify(ctx context.Context, text string) {
	if h.notifier == nil {
		return
	}
	h.notifier.Notify(ctx, text)
}

package userbot

import (
	"fmt"
	"strings"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/usecase/rules"
)

const helpText = `🤖 Автоответчик — команды (работают только в «Избранном»):

Основное:
/on — включить автоответы
/off — выключить автоответы
/set <текст> — задать дефолтное сообщение
/status — текущее состояние
/help — эта справка

Временные правила:
/custom <ЧЧ:ММ-ЧЧ:ММ> <категория> — добавить правило
/listcustom — список правил
/customedit <id> <ЧЧ:ММ-ЧЧ:ММ> — изменить окно правила
/removecustom <id|категория> — удалить правило или категорию
/customremoveall — удалить все правила
/customon — включить правила
/customoff — выключить правила

Временный режим:
/temp <категория> — принудительная категория до сброса
/listtemp — состояние временного режима
/tempreset — выключить временный режим

Прочее:
/confirm (или «yes») — подтвердить действие
/cancel — отменить действие
/stats today|week — статистика автоответов
/categories — список категорий`

func onOffRu(enabled bool) string {
	if enabled {
		return "включён"
	}
	return "выключен"
}

func statusText(state domain.BotState, temp domain.TempState, ruleCount int) string {
	var b strings.Builder
	b.WriteString("ℹ️ Состояние автоответчика\n\n")
	fmt.Fprintf(&b, "Автоответ: %s\n", onOffRu(state.AutoReplyEnabled))
	fmt.Fprintf(&b, "Временные правила: %s (%d шт.)\n", onOffRu(state.CustomRulesEnabled), ruleCount)
	if state.DefaultMessage != "" {
		fmt.Fprintf(&b, "Дефолтное сообщение: %s\n", state.DefaultMessage)
	} else {
		b.WriteString("Дефолтное сообщение: не задано\n")
	}
	if temp.Active {
		fmt.Fprintf(&b, "Временный режим: активен, категория «%s»\n", temp.Category)
	} else {
		b.WriteString("Временный режим: выключен\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func ruleLine(rule domain.TimeRule) string {
	label := rule.Category
	if !domain.IsKnownCategory(rule.Category) {
		label = fmt.Sprintf("текст: %s", rule.Category)
	}
	return fmt.Sprintf("%s  %s  %s", shortID(rule.ID), rules.FormatWindow(rule), label)
}

func listText(list []domain.TimeRule) string {
	if len(list) == 0 {
		return "Правил пока нет. Добавьте: /custom 09:00-18:00 work"
	}
	var b strings.Builder
	b.WriteString("📋 Временные правила (в порядке создания):\n\n")
	for _, rule := range list {
		b.WriteString(ruleLine(rule))
		b.WriteString("\n")
	}
	b.WriteString("\nПри пересечении окон действует правило, созданное раньше.")
	return b.String()
}

func shortID(id string) string {
	if len(id) <= rules.ShortIDLen {
		return id
	}
	return id[:rules.ShortIDLen]
}

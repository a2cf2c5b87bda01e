package domain

import (
	"sort"
	"strings"
)

// categoryMessages — предустановленный каталог категорий автоответа.
// Тексты нарочно человеческие, максимум один эмодзи на сообщение.
var categoryMessages = map[string]string{
	// Общий статус
	"away":    "Привет! Я сейчас не у телефона, отвечу как только вернусь 😊",
	"busy":    "Я немного занят, отвечу при первой возможности 🙏",
	"offline": "Я сейчас офлайн. Свяжусь с вами позже!",

	// Работа и учёба
	"work":     "Я на работе, отвечу когда освобожусь ⚡",
	"study":    "Сейчас учусь, напишу позже 📚",
	"meetings": "Я на встречах, отвечу как только они закончатся!",
	"focus":    "Я в режиме глубокой концентрации, отвечу когда закончу 🎯",
	"dnd":      "Пожалуйста, не беспокоить. Отвечу чуть позже!",

	// Личное
	"sleep": "Я сплю, отвечу когда проснусь 😴",
	"lunch": "Я обедаю, скоро вернусь и отвечу!",
	"gym":   "Я в зале, отвечу после тренировки 💪",
	"fresh": "Приводжу себя в порядок, отвечу через пару минут!",

	// Дорога и отдых
	"driving":  "Я за рулём, напишу как припаркуюсь 🚗",
	"travel":   "Я в дороге, отвечу когда будет возможность!",
	"family":   "Провожу время с семьёй, спишемся позже 🏡",
	"vacation": "Я в отпуске! Отвечу, когда доберусь до телефона 🌴",
}

// categoryGroups задаёт порядок вывода категорий в справке.
var categoryGroups = []struct {
	Title string
	Names []string
}{
	{"Общий статус", []string{"away", "busy", "offline"}},
	{"Работа и учёба", []string{"work", "study", "meetings", "focus", "dnd"}},
	{"Личное", []string{"sleep", "lunch", "gym", "fresh"}},
	{"Дорога и отдых", []string{"driving", "travel", "family", "vacation"}},
}

// IsKnownCategory сообщает, есть ли категория в каталоге.
func IsKnownCategory(category string) bool {
	_, ok := categoryMessages[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// CategoryMessage возвращает текст категории из каталога.
func CategoryMessage(category string) (string, bool) {
	msg, ok := categoryMessages[strings.ToLower(strings.TrimSpace(category))]
	return msg, ok
}

// CategoryNames возвращает отсортированный список имён категорий.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryMessages))
	for name := range categoryMessages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoriesHelp собирает справку по каталогу, сгруппированную по темам.
func CategoriesHelp() string {
	var b strings.Builder
	b.WriteString("📋 Доступные категории:\n")
	for _, group := range categoryGroups {
		b.WriteString("\n" + group.Title + ":\n")
		for _, name := range group.Names {
			msg, ok := categoryMessages[name]
			if !ok {
				continue
			}
			b.WriteString("• " + name + " — " + msg + "\n")
		}
	}
	b.WriteString("\nВ командах /custom и /temp можно указать и произвольный текст вместо категории.")
	return b.String()
}

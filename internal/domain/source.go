package domain

// SourceKind перечисляет источники текста автоответа.
type SourceKind int

const (
	// SourceDefault — дефолтное сообщение из BotState.
	SourceDefault SourceKind = iota
	// SourceCategory — категория из каталога.
	SourceCategory
	// SourceCustomText — произвольный текст, заданный владельцем.
	SourceCustomText
)

// MessageSource — тегированный источник сообщения. Выбор источника делают
// гейты движка, в строку он превращается только на самом последнем шаге.
type MessageSource struct {
	Kind  SourceKind
	Value string
}

// DefaultSource возвращает источник «дефолтное сообщение».
func DefaultSource() MessageSource {
	return MessageSource{Kind: SourceDefault}
}

// CategorySource строит источник по имени категории: известные категории
// резолвятся через каталог, всё остальное трактуется как произвольный текст.
func CategorySource(category string) MessageSource {
	if IsKnownCategory(category) {
		return MessageSource{Kind: SourceCategory, Value: category}
	}
	return MessageSource{Kind: SourceCustomText, Value: category}
}

// Resolve превращает источник в готовый текст ответа.
func (s MessageSource) Resolve(defaultMessage string) string {
	switch s.Kind {
	case SourceCategory:
		if msg, ok := CategoryMessage(s.Value); ok {
			return msg
		}
		return s.Value
	case SourceCustomText:
		return s.Value
	default:
		return defaultMessage
	}
}

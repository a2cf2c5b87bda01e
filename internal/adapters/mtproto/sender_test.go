package mtproto

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("а", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("б", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("в", 500))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}

	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, length)
		}
	}

	if parts[0] != strings.Repeat("а", 3000) {
		t.Fatalf("неожиданный состав первой части")
	}
	if !strings.HasSuffix(parts[1], strings.Repeat("в", 500)) {
		t.Fatalf("вторая часть должна заканчиваться блоком «в»")
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "привет"
	parts := SplitMessage(text)
	if len(parts) != 1 {
		t.Fatalf("ожидали одну часть, получили %d", len(parts))
	}
	if parts[0] != text {
		t.Fatalf("текст изменился: %q", parts[0])
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой ввод не должен давать частей, получили %d", len(parts))
	}
}

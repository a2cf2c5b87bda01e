package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// messageLimit — лимит Telegram на длину одного сообщения в рунах.
const messageLimit = 4096

// ErrPeerUnknown возвращается, когда у получателя нет access hash в кэше.
// Для автоответов это не случается: хэш прогревается самим входящим
// сообщением.
var ErrPeerUnknown = errors.New("пир неизвестен, отправка невозможна")

var _ domain.Messenger = (*Client)(nil)

// SendMessage реализует domain.Messenger: длинные тексты режутся на
// части по лимиту Telegram.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	peer, ok := c.peers.inputPeer(chatID)
	if !ok {
		return ErrPeerUnknown
	}
	for _, part := range SplitMessage(text) {
		start := time.Now()
		_, err := c.sender.To(peer).Text(ctx, part)
		metrics.ObserveNetworkRequest("telegram", "send_message", "messages", start, err)
		if err != nil {
			return fmt.Errorf("отправка сообщения: %w", err)
		}
	}
	return nil
}

// SplitMessage режет текст на куски, укладывающиеся в лимит Telegram.
// Предпочитает границы строк, чтобы не рвать форматированные блоки.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + messageLimit
		if end >= len(runes) {
			if chunk := strings.Trim(string(runes[start:]), "\n"); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := -1
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		if split == -1 {
			split = end
		}

		if chunk := strings.Trim(string(runes[start:split]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}

		start = split
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}

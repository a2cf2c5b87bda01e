package notify

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// BotNotifier шлёт служебные уведомления владельцу через обычного
// Telegram-бота. Отдельный канал нужен, чтобы уведомления о
// деструктивных операциях не терялись в «Избранном» среди команд.
type BotNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

var _ domain.OwnerNotifier = (*BotNotifier)(nil)

// NewBotNotifier создаёт уведомитель. Токен проверяется сразу:
// нерабочий бот лучше обнаружить на старте, а не при первом уведомлении.
func NewBotNotifier(token string, chatID int64, log zerolog.Logger) (*BotNotifier, error) {
	start := time.Now()
	bot, err := tgbotapi.NewBotAPI(token)
	metrics.ObserveNetworkRequest("telegram_bot", "get_me", "api", start, err)
	if err != nil {
		return nil, err
	}
	return &BotNotifier{bot: bot, chatID: chatID, log: log}, nil
}

// Notify отправляет текст владельцу. Ошибка только логируется:
// уведомления вторичны и не должны ломать основной сценарий.
func (n *BotNotifier) Notify(_ context.Context, text string) {
	start := time.Now()
	_, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", "owner", start, err)
	if err != nil {
		n.log.Error().Err(err).Msg("notify: не удалось отправить уведомление")
	}
}

// NopNotifier используется, когда бот-уведомитель не настроен.
type NopNotifier struct{}

var _ domain.OwnerNotifier = NopNotifier{}

// Notify ничего не делает.
func (NopNotifier) Notify(context.Context, string) {}

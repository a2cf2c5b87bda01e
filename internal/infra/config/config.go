package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов юзербота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	Telegram struct {
		APIID   int    `envconfig:"TG_API_ID"`
		APIHash string `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	MTProto struct {
		SessionName  string        `envconfig:"MTPROTO_SESSION_NAME" default:"default"`
		PresenceTTL  time.Duration `envconfig:"PRESENCE_TTL" default:"30s"`
		PollInterval time.Duration `envconfig:"MTPROTO_POLL_INTERVAL" default:"10s"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	// RedisAddr пустой — кулдаун живёт в памяти процесса.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Reply struct {
		DefaultMessage string        `envconfig:"DEFAULT_REPLY_MESSAGE" default:"Я сейчас не на связи, отвечу позже."`
		Cooldown       time.Duration `envconfig:"REPLY_COOLDOWN" default:"5m"`
	} `envconfig:""`

	ConfirmTTL time.Duration `envconfig:"CONFIRM_TTL" default:"60s"`

	Queues struct {
		ReplyEvents string `envconfig:"REPLY_EVENTS_QUEUE_KEY" default:"reply_events"`
	} `envconfig:""`

	Notifier struct {
		BotToken string `envconfig:"NOTIFIER_BOT_TOKEN"`
		ChatID   int64  `envconfig:"NOTIFIER_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

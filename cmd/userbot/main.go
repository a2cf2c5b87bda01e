package main

import (
	"context"
	"errors"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/adapters/cooldown"
	"tg-autoreply-userbot/internal/adapters/mtproto"
	"tg-autoreply-userbot/internal/adapters/notify"
	"tg-autoreply-userbot/internal/adapters/repo"
	"tg-autoreply-userbot/internal/adapters/userbot"
	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/config"
	"tg-autoreply-userbot/internal/infra/db"
	httpinfra "tg-autoreply-userbot/internal/infra/http"
	"tg-autoreply-userbot/internal/infra/log"
	"tg-autoreply-userbot/internal/infra/metrics"
	"tg-autoreply-userbot/internal/infra/queue"
	"tg-autoreply-userbot/internal/usecase/autoreply"
	"tg-autoreply-userbot/internal/usecase/confirm"
	"tg-autoreply-userbot/internal/usecase/rules"
	"tg-autoreply-userbot/internal/usecase/stats"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("неизвестная таймзона")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить схему БД")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	var ready atomic.Bool
	httpServer := httpinfra.NewServer(logger, ready.Load)
	httpServer.Start(ctx, cfg.HTTPAddr)

	// Кулдаун: Redis переживает рестарты, без него — память процесса.
	var tracker domain.CooldownTracker
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		tracker = cooldown.NewRedisTracker(redisClient, cfg.Reply.Cooldown)
	} else {
		logger.Warn().Msg("REDIS_ADDR не задан: кулдаун в памяти, после рестарта обнулится")
		tracker = cooldown.NewMemoryTracker(cfg.Reply.Cooldown)
	}

	var events domain.EventQueue
	switch {
	case cfg.RabbitURL != "":
		rabbit, err := queue.NewRabbitEventQueue(cfg.RabbitURL, cfg.Queues.ReplyEvents)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	case redisClient != nil:
		events = queue.NewRedisEventQueue(redisClient, cfg.Queues.ReplyEvents)
	default:
		logger.Fatal().Msg("нужна очередь аналитики: задайте RABBITMQ_URL или REDIS_ADDR")
	}

	var notifier domain.OwnerNotifier = notify.NopNotifier{}
	if cfg.Notifier.BotToken != "" && cfg.Notifier.ChatID != 0 {
		botNotifier, err := notify.NewBotNotifier(cfg.Notifier.BotToken, cfg.Notifier.ChatID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать бота-уведомителя")
		}
		notifier = botNotifier
	}

	sessions := mtproto.NewPGSessionStorage(repoAdapter, cfg.MTProto.SessionName)
	client := mtproto.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, sessions, cfg.MTProto.PresenceTTL, logger)

	go runAnalyticsWorker(ctx, logger, events, repoAdapter)

	err = client.Run(ctx, func(runCtx context.Context) error {
		ownerID := client.SelfID()

		if err := seedDefaultMessage(runCtx, repoAdapter, ownerID, cfg.Reply.DefaultMessage); err != nil {
			return err
		}

		engine := autoreply.NewService(ownerID, client, repoAdapter, repoAdapter, tracker, client, events, loc, logger)
		handler := userbot.NewHandler(
			ownerID, client.SelfChatID(),
			client,
			repoAdapter,
			rules.NewService(repoAdapter),
			confirm.NewService(repoAdapter, repoAdapter, cfg.ConfirmTTL),
			stats.NewService(repoAdapter, loc),
			notifier,
			logger,
		)

		client.OnCommand(handler.HandleCommand)
		client.OnIncoming(func(msgCtx context.Context, msg domain.IncomingMessage) {
			if _, err := engine.HandleIncoming(msgCtx, msg); err != nil {
				logger.Error().Err(err).Int64("sender_id", msg.SenderID).Msg("ошибка обработки входящего")
			}
		})

		ready.Store(true)
		logger.Info().Int64("owner_id", ownerID).Msg("юзербот запущен")
		notifier.Notify(runCtx, "🤖 Автоответчик запущен и принимает команды в «Избранном».")
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("клиент остановился с ошибкой")
	}
	logger.Info().Msg("остановка юзербота")
}

// seedDefaultMessage заполняет дефолтный текст ответа при первом запуске.
// Уже заданный владельцем текст не перетирается.
func seedDefaultMessage(ctx context.Context, states domain.StateRepo, ownerID int64, message string) error {
	state, err := states.GetBotState(ctx, ownerID)
	if err != nil {
		return err
	}
	if state.DefaultMessage != "" {
		return nil
	}
	state.DefaultMessage = message
	return states.SaveBotState(ctx, state)
}

// runAnalyticsWorker перекладывает события из очереди в Postgres.
// Ошибка записи роняет событие с метрикой, но не воркер: аналитика
// вторична и не должна останавливать автоответы.
func runAnalyticsWorker(ctx context.Context, logger zerolog.Logger, events domain.EventQueue, analytics domain.AnalyticsRepo) {
	for {
		event, err := events.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncAnalyticsEvent("pop_error")
			logger.Error().Err(err).Msg("analytics: не удалось получить событие из очереди")
			time.Sleep(time.Second)
			continue
		}
		if err := analytics.AppendReplyEvent(ctx, event); err != nil {
			metrics.IncAnalyticsEvent("store_error")
			logger.Error().Err(err).Int64("sender_id", event.SenderID).Msg("analytics: не удалось записать событие")
			continue
		}
		metrics.IncAnalyticsEvent("stored")
	}
}

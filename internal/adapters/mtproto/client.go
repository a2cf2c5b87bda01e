package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-autoreply-userbot/internal/domain"
)

// CommandHandler вызывается для сообщений владельца в «Избранном».
type CommandHandler func(ctx context.Context, text string)

// IncomingHandler вызывается для входящих личных сообщений.
type IncomingHandler func(ctx context.Context, msg domain.IncomingMessage)

// Client — MTProto-клиент аккаунта владельца: принимает апдейты,
// маршрутизирует личные сообщения и команды, отправляет ответы.
type Client struct {
	client *telegram.Client
	api    *tg.Client
	sender *message.Sender
	gaps   *updates.Manager
	logger zerolog.Logger

	selfID   int64
	peers    *peerCache
	presence *presenceCache

	onCommand  CommandHandler
	onIncoming IncomingHandler
}

// NewClient собирает клиента поверх сохранённой сессии. Обработчики
// задаются до Run.
func NewClient(apiID int, apiHash string, storage session.Storage, pollInterval time.Duration, logger zerolog.Logger) *Client {
	c := &Client{
		logger:   logger,
		peers:    newPeerCache(),
		presence: newPresenceCache(pollInterval),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)
	dispatcher.OnUserStatus(c.onUserStatus)

	c.gaps = updates.New(updates.Config{Handler: dispatcher})
	c.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  c.gaps,
	})
	c.api = c.client.API()
	c.sender = message.NewSender(c.api)
	return c
}

// OnCommand регистрирует обработчик команд из «Избранного».
func (c *Client) OnCommand(handler CommandHandler) { c.onCommand = handler }

// OnIncoming регистрирует обработчик входящих личных сообщений.
func (c *Client) OnIncoming(handler IncomingHandler) { c.onIncoming = handler }

// SelfID возвращает идентификатор владельца; валиден после Run.
func (c *Client) SelfID() int64 { return c.selfID }

// SelfChatID возвращает чат для служебных ответов владельцу — его же
// «Избранное».
func (c *Client) SelfChatID() int64 { return c.selfID }

// Run авторизуется по сохранённой сессии, вызывает ready и блокируется
// на обработке апдейтов до отмены контекста. Интерактивного логина нет:
// сессию загружает session-importer.
func (c *Client) Run(ctx context.Context, ready func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("статус авторизации: %w", err)
		}
		if !status.Authorized {
			return errors.New("сессия не авторизована: импортируйте её командой session-importer")
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("получение собственного профиля: %w", err)
		}
		c.selfID = self.ID
		c.peers.remember(self.ID, self.AccessHash, self.Bot)
		c.logger.Info().
			Int64("owner_id", self.ID).
			Str("username", self.Username).
			Msg("mtproto: авторизован")

		if ready != nil {
			if err := ready(ctx); err != nil {
				return err
			}
		}
		return c.gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{})
	})
}

func (c *Client) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	c.peers.harvest(e)

	// Движок работает только с личными диалогами; группы и каналы
	// не участвуют ни в командах, ни в автоответах.
	peer, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		return nil
	}

	if peer.UserID == c.selfID {
		// «Избранное» — канал управления: любые сообщения в нём
		// трактуются как команды владельца.
		if c.onCommand != nil && strings.TrimSpace(msg.Message) != "" {
			c.onCommand(ctx, msg.Message)
		}
		return nil
	}
	if msg.Out {
		return nil
	}

	if c.onIncoming != nil {
		c.onIncoming(ctx, domain.IncomingMessage{
			ChatID:     peer.UserID,
			SenderID:   peer.UserID,
			Text:       msg.Message,
			ReceivedAt: time.Unix(int64(msg.Date), 0),
			FromBot:    c.peers.isBot(peer.UserID),
		})
	}
	return nil
}

func (c *Client) onUserStatus(_ context.Context, _ tg.Entities, u *tg.UpdateUserStatus) error {
	if u.UserID != c.selfID {
		return nil
	}
	c.presence.set(statusOnline(u.Status, time.Now()))
	return nil
}

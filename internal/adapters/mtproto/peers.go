package mtproto

import (
	"sync"

	"github.com/gotd/td/tg"
)

// peerCache накапливает access hash пользователей из приходящих апдейтов.
// Без известного хэша пиру нельзя отправить сообщение, поэтому кэш
// прогревается каждым входящим событием.
type peerCache struct {
	mu    sync.RWMutex
	users map[int64]peerInfo
}

type peerInfo struct {
	accessHash int64
	bot        bool
}

func newPeerCache() *peerCache {
	return &peerCache{users: make(map[int64]peerInfo)}
}

func (p *peerCache) harvest(e tg.Entities) {
	for id, user := range e.Users {
		if user == nil {
			continue
		}
		p.remember(id, user.AccessHash, user.Bot)
	}
}

func (p *peerCache) remember(id, accessHash int64, bot bool) {
	p.mu.Lock()
	p.users[id] = peerInfo{accessHash: accessHash, bot: bot}
	p.mu.Unlock()
}

func (p *peerCache) inputPeer(id int64) (*tg.InputPeerUser, bool) {
	p.mu.RLock()
	info, ok := p.users[id]
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &tg.InputPeerUser{UserID: id, AccessHash: info.accessHash}, true
}

func (p *peerCache) isBot(id int64) bool {
	p.mu.RLock()
	info, ok := p.users[id]
	p.mu.RUnlock()
	return ok && info.bot
}

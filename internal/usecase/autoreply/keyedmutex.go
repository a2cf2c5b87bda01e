package autoreply

import "sync"

// keyedMutex выдаёт мьютекс на произвольный ключ. Запись удаляется,
// когда ключ никто не держит, поэтому карта не растёт бесконечно.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()
	entry.mu.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
	}
	k.mu.Unlock()
	if ok {
		entry.mu.Unlock()
	}
}

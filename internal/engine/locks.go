package engine

import "sync"

// keyedMutex hands out non-blocking per-key locks.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{held: make(map[string]struct{})}
}

func (k *keyedMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.held[key]; busy {
		return nil, false
	}
	k.held[key] = struct{}{}
	return func() {
		k.mu.Lock()
		delete(k.held, key)
		k.mu.Unlock()
	}, true
}

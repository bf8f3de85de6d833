package service

import "sync"

// keyedMutex serializes work per task id. Entries are dropped once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu   sync.Mutex
	held map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id int64) (unlock func()) {
	k.mu.Lock()
	e, ok := k.held[id]
	if !ok {
		e = &lockEntry{}
		k.held[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.held, id)
		}
		k.mu.Unlock()
	}
}

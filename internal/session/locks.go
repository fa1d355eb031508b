package session

import "sync"

// keyedMutex hands out one mutex per identity. Entries are never removed;
// identities are long-lived and the set is bounded by the user base.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Identity]*sync.Mutex
}

func (k *keyedMutex) lock(id Identity) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[Identity]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

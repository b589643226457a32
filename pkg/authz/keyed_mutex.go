package authz

import "sync"

// keyedMutex serializes work per key. The engine holds one key for the whole
// check-and-mutate sequence of an (account, identifier) pair so concurrent
// triggers cannot race to double-register a device.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*keyedLock),
	}
}

// lock acquires the mutex for key and returns the unlock function. Entries
// are reference-counted and removed once unused so the map does not grow
// with every pair ever checked.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

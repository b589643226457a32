package deviceid

import "sync"

// InMemKV implements KV with an in-process map. Used by tests and the inmem
// demo binary. Not durable: every process start looks like a fresh install.
type InMemKV struct {
	values map[string]string
	mu     sync.Mutex

	// FailGet and FailSet force storage errors; tests use them to exercise
	// the fail-closed path.
	FailGet error
	FailSet error
}

// NewInMemKV creates an empty in-memory KV store.
func NewInMemKV() *InMemKV {
	return &InMemKV{
		values: make(map[string]string),
	}
}

// Get returns the stored value for key and whether it was present.
func (kv *InMemKV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailGet != nil {
		return "", false, kv.FailGet
	}
	value, ok := kv.values[key]
	return value, ok, nil
}

// Set stores the value for key.
func (kv *InMemKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.FailSet != nil {
		return kv.FailSet
	}
	kv.values[key] = value
	return nil
}

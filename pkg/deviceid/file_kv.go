package deviceid

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV implements KV over a JSON file in a data directory. Writes go
// through a temp file and rename so a crash mid-write never corrupts the
// persisted identifier.
type FileKV struct {
	path   string
	values map[string]string
	mutex  sync.RWMutex
}

// NewFileKV creates a file-backed KV store under dataDir.
func NewFileKV(dataDir string) (*FileKV, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	kv := &FileKV{
		path:   filepath.Join(dataDir, "local_storage.json"),
		values: make(map[string]string),
	}

	if err := kv.load(); err != nil {
		return nil, err
	}
	return kv, nil
}

// Get returns the stored value for key and whether it was present.
func (kv *FileKV) Get(key string) (string, bool, error) {
	kv.mutex.RLock()
	defer kv.mutex.RUnlock()

	value, ok := kv.values[key]
	return value, ok, nil
}

// Set stores the value for key and flushes it to disk.
func (kv *FileKV) Set(key, value string) error {
	kv.mutex.Lock()
	defer kv.mutex.Unlock()

	kv.values[key] = value
	return kv.save()
}

func (kv *FileKV) load() error {
	data, err := os.ReadFile(kv.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read local storage file: %w", err)
	}

	if err := json.Unmarshal(data, &kv.values); err != nil {
		return fmt.Errorf("failed to parse local storage file: %w", err)
	}
	return nil
}

func (kv *FileKV) save() error {
	data, err := json.MarshalIndent(kv.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal local storage: %w", err)
	}

	tmp := kv.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write local storage file: %w", err)
	}
	if err := os.Rename(tmp, kv.path); err != nil {
		return fmt.Errorf("failed to replace local storage file: %w", err)
	}
	return nil
}

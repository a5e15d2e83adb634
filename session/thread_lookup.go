package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ThreadLookup maps a stable user key (for example the profile id) to the
// backend thread token so a returning user resumes their conversation instead
// of starting a fresh thread.
type ThreadLookup interface {
	// Lookup returns the thread token for the key, ok reports whether one
	// is recorded.
	Lookup(key string) (threadID string, ok bool, err error)

	// Save records the thread token for the key, overwriting any previous one.
	Save(key, threadID string) error
}

// InMemoryThreadLookup is a volatile ThreadLookup for tests and single-run
// tools.
type InMemoryThreadLookup struct {
	mu      sync.RWMutex
	threads map[string]string
}

var _ ThreadLookup = (*InMemoryThreadLookup)(nil)

// NewInMemoryThreadLookup constructs an empty lookup.
func NewInMemoryThreadLookup() *InMemoryThreadLookup {
	return &InMemoryThreadLookup{threads: make(map[string]string)}
}

func (l *InMemoryThreadLookup) Lookup(key string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.threads[key]
	return id, ok, nil
}

func (l *InMemoryThreadLookup) Save(key, threadID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.threads[key] = threadID
	return nil
}

// FileThreadLookup persists the key to thread mapping as a JSON document on
// disk so threads survive process restarts. Writes go through a temp file
// rename to stay atomic on the same filesystem.
type FileThreadLookup struct {
	mu   sync.Mutex
	path string
}

var _ ThreadLookup = (*FileThreadLookup)(nil)

// NewFileThreadLookup constructs a lookup backed by the JSON file at path.
// The file is created on first Save.
func NewFileThreadLookup(path string) *FileThreadLookup {
	return &FileThreadLookup{path: path}
}

func (l *FileThreadLookup) Lookup(key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	threads, err := l.load()
	if err != nil {
		return "", false, err
	}
	id, ok := threads[key]
	return id, ok, nil
}

func (l *FileThreadLookup) Save(key, threadID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	threads, err := l.load()
	if err != nil {
		return err
	}
	threads[key] = threadID

	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode thread lookup: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create thread lookup directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write thread lookup: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace thread lookup: %w", err)
	}
	return nil
}

// load reads the mapping, returning an empty map when the file does not
// exist yet. Caller must hold the mutex.
func (l *FileThreadLookup) load() (map[string]string, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread lookup: %w", err)
	}

	threads := make(map[string]string)
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("failed to decode thread lookup %s: %w", l.path, err)
	}
	return threads, nil
}

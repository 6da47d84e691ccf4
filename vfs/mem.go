package vfs

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// MemFS keeps databases in process memory. Databases survive close and
// reopen for as long as the MemFS does.
type MemFS struct {
	ns string

	mu    sync.Mutex
	stors map[string]storage.Storage
}

// NewMem returns an empty in-memory provider with a fresh namespace.
func NewMem() *MemFS {
	return &MemFS{
		ns:    "mem:" + uuid.NewString(),
		stors: make(map[string]storage.Storage),
	}
}

// memStorage outlives engine close; only MemFS drops it.
type memStorage struct {
	storage.Storage
}

func (memStorage) Close() error { return nil }

// Namespace implements FS.
func (m *MemFS) Namespace() string { return m.ns }

// Key implements FS.
func (m *MemFS) Key(path string) string { return filepath.Clean(path) }

// Open implements FS.
func (m *MemFS) Open(path string) (storage.Storage, error) {
	key := m.Key(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	stor, ok := m.stors[key]
	if !ok {
		stor = memStorage{storage.NewMemStorage()}
		m.stors[key] = stor
	}
	return stor, nil
}

// Exists implements FS.
func (m *MemFS) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stors[m.Key(path)]
	return ok
}

// HasDatabase implements FS.
func (m *MemFS) HasDatabase(path string) bool {
	m.mu.Lock()
	stor, ok := m.stors[m.Key(path)]
	m.mu.Unlock()
	if !ok {
		return false
	}
	_, err := stor.GetMeta()
	return err == nil
}

// Remove implements FS.
func (m *MemFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stors, m.Key(path))
	return nil
}

// Len returns the number of paths holding storage.
func (m *MemFS) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stors)
}

// Close drops every database.
func (m *MemFS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.stors)
	return nil
}

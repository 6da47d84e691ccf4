// Package vfs provides the storage providers behind Env handles.
//
// A provider maps a database path onto a goleveldb storage.Storage:
//   - Default() uses OS directories
//   - NewMem() keeps every database in process memory
//   - NewFaultInjectionFS() wraps another provider and injects I/O errors
package vfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// FS is a storage provider.
type FS interface {
	// Namespace identifies the provider instance. Two providers with the same
	// namespace see the same databases.
	Namespace() string

	// Key canonicalises path so different spellings of one database compare equal.
	Key(path string) string

	// Open returns the storage for path, creating it if needed.
	// The returned storage holds the database lock until closed.
	Open(path string) (storage.Storage, error)

	// Exists reports whether anything exists at path.
	Exists(path string) bool

	// HasDatabase reports whether path holds a database.
	HasDatabase(path string) bool

	// Remove deletes the database at path. Removing a missing database succeeds.
	Remove(path string) error
}

// metaFiles are written by the OS storage outside its FileDesc namespace.
var metaFiles = []string{"CURRENT", "CURRENT.bak", "LOCK", "LOG", "LOG.old"}

type osFS struct{}

var defaultFS FS = osFS{}

// Default returns the OS directory provider.
func Default() FS {
	return defaultFS
}

func (osFS) Namespace() string { return "os" }

func (osFS) Key(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func (osFS) Open(path string) (storage.Storage, error) {
	stor, err := storage.OpenFile(path, false)
	return stor, errors.Wrapf(err, "open storage %s", path)
}

func (osFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFS) HasDatabase(path string) bool {
	matches, err := filepath.Glob(filepath.Join(path, "CURRENT*"))
	return err == nil && len(matches) > 0
}

func (fs osFS) Remove(path string) error {
	if !fs.Exists(path) {
		return nil
	}
	stor, err := storage.OpenFile(path, false)
	if err != nil {
		return errors.Wrapf(err, "remove %s", path)
	}
	fds, err := stor.List(storage.TypeAll)
	if err != nil {
		_ = stor.Close()
		return errors.Wrapf(err, "list %s", path)
	}
	for _, fd := range fds {
		if err := stor.Remove(fd); err != nil {
			_ = stor.Close()
			return errors.Wrapf(err, "remove %s", fd)
		}
	}
	if err := stor.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	pending, _ := filepath.Glob(filepath.Join(path, "CURRENT.*"))
	for _, name := range pending {
		_ = os.Remove(name)
	}
	for _, name := range metaFiles {
		if err := os.Remove(filepath.Join(path, name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", name)
		}
	}
	// Other files in the directory are not ours; leave the directory then.
	_ = os.Remove(path)
	return nil
}

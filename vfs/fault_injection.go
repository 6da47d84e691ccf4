// fault_injection.go implements a provider wrapper that injects I/O errors.

package vfs

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError is returned when a sync error is injected.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")
)

// FaultInjectionFS wraps an FS and fails reads, writes or syncs on demand.
// Injection can target one file type (journal, manifest, table) or all.
type FaultInjectionFS struct {
	base FS

	mu sync.RWMutex

	injectReadError  bool
	injectWriteError bool
	injectSyncError  bool
	readErrorType    storage.FileType
	writeErrorType   storage.FileType

	// When false every mutation fails, as if the device went away.
	filesystemActive bool

	writes uint64
	syncs  uint64
}

// NewFaultInjectionFS creates a new fault-injecting wrapper around base.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{
		base:             base,
		filesystemActive: true,
	}
}

// SetFilesystemActive enables or disables the filesystem.
// When disabled, all writes fail.
func (fs *FaultInjectionFS) SetFilesystemActive(active bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.filesystemActive = active
}

// InjectReadError fails reads of files of type ft (storage.TypeAll for every file).
func (fs *FaultInjectionFS) InjectReadError(ft storage.FileType) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectReadError = true
	fs.readErrorType = ft
}

// InjectWriteError fails writes and creates of files of type ft.
func (fs *FaultInjectionFS) InjectWriteError(ft storage.FileType) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectWriteError = true
	fs.writeErrorType = ft
}

// InjectSyncError fails every sync.
func (fs *FaultInjectionFS) InjectSyncError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectSyncError = true
}

// ClearErrors clears all error injection.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectReadError = false
	fs.injectWriteError = false
	fs.injectSyncError = false
	fs.readErrorType = 0
	fs.writeErrorType = 0
}

// Counts returns the number of successful writes and syncs seen so far.
func (fs *FaultInjectionFS) Counts() (writes, syncs uint64) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.writes, fs.syncs
}

func (fs *FaultInjectionFS) readFault(ft storage.FileType) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.injectReadError && fs.readErrorType&ft != 0 {
		return ErrInjectedReadError
	}
	return nil
}

func (fs *FaultInjectionFS) writeFault(ft storage.FileType) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.filesystemActive {
		return ErrInjectedWriteError
	}
	if fs.injectWriteError && fs.writeErrorType&ft != 0 {
		return ErrInjectedWriteError
	}
	return nil
}

func (fs *FaultInjectionFS) syncFault() error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.filesystemActive || fs.injectSyncError {
		return ErrInjectedSyncError
	}
	return nil
}

// Namespace implements FS. It is the base provider's namespace, since both
// see the same databases.
func (fs *FaultInjectionFS) Namespace() string { return fs.base.Namespace() }

// Key implements FS.
func (fs *FaultInjectionFS) Key(path string) string { return fs.base.Key(path) }

// Exists implements FS.
func (fs *FaultInjectionFS) Exists(path string) bool { return fs.base.Exists(path) }

// HasDatabase implements FS.
func (fs *FaultInjectionFS) HasDatabase(path string) bool { return fs.base.HasDatabase(path) }

// Open implements FS.
func (fs *FaultInjectionFS) Open(path string) (storage.Storage, error) {
	stor, err := fs.base.Open(path)
	if err != nil {
		return nil, err
	}
	return &faultStorage{Storage: stor, fs: fs}, nil
}

// Remove implements FS.
func (fs *FaultInjectionFS) Remove(path string) error {
	if err := fs.writeFault(storage.TypeAll); err != nil {
		return err
	}
	return fs.base.Remove(path)
}

// Close closes the base provider if it holds resources.
func (fs *FaultInjectionFS) Close() error {
	if c, ok := fs.base.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// faultStorage wraps storage.Storage with fault injection.
type faultStorage struct {
	storage.Storage
	fs *FaultInjectionFS
}

func (s *faultStorage) Open(fd storage.FileDesc) (storage.Reader, error) {
	if err := s.fs.readFault(fd.Type); err != nil {
		return nil, err
	}
	r, err := s.Storage.Open(fd)
	if err != nil {
		return nil, err
	}
	return &faultReader{Reader: r, fs: s.fs, ft: fd.Type}, nil
}

func (s *faultStorage) Create(fd storage.FileDesc) (storage.Writer, error) {
	if err := s.fs.writeFault(fd.Type); err != nil {
		return nil, err
	}
	w, err := s.Storage.Create(fd)
	if err != nil {
		return nil, err
	}
	return &faultWriter{Writer: w, fs: s.fs, ft: fd.Type}, nil
}

func (s *faultStorage) SetMeta(fd storage.FileDesc) error {
	if err := s.fs.writeFault(storage.TypeManifest); err != nil {
		return err
	}
	return s.Storage.SetMeta(fd)
}

func (s *faultStorage) Rename(oldfd, newfd storage.FileDesc) error {
	if err := s.fs.writeFault(oldfd.Type); err != nil {
		return err
	}
	return s.Storage.Rename(oldfd, newfd)
}

// faultWriter wraps storage.Writer with fault injection.
type faultWriter struct {
	storage.Writer
	fs *FaultInjectionFS
	ft storage.FileType
}

func (w *faultWriter) Write(p []byte) (int, error) {
	if err := w.fs.writeFault(w.ft); err != nil {
		return 0, err
	}
	n, err := w.Writer.Write(p)
	if err == nil {
		w.fs.mu.Lock()
		w.fs.writes++
		w.fs.mu.Unlock()
	}
	return n, err
}

func (w *faultWriter) Sync() error {
	if err := w.fs.syncFault(); err != nil {
		return err
	}
	err := w.Writer.Sync()
	if err == nil {
		w.fs.mu.Lock()
		w.fs.syncs++
		w.fs.mu.Unlock()
	}
	return err
}

// faultReader wraps storage.Reader with fault injection.
type faultReader struct {
	storage.Reader
	fs *FaultInjectionFS
	ft storage.FileType
}

func (r *faultReader) Read(p []byte) (int, error) {
	if err := r.fs.readFault(r.ft); err != nil {
		return 0, err
	}
	return r.Reader.Read(p)
}

func (r *faultReader) ReadAt(p []byte, off int64) (int, error) {
	if err := r.fs.readFault(r.ft); err != nil {
		return 0, err
	}
	return r.Reader.ReadAt(p, off)
}

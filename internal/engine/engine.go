// Package engine is the boundary between the handle layer and goleveldb.
//
// Nothing above this package touches leveldb.DB directly: settings are
// translated into opt.Options here, engine errors are classified into a
// small set of kinds, and engine info-log lines are forwarded to the
// layer logger.
package engine

import (
	"os"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/aalhour/lvlkv/internal/logging"
)

var (
	// ErrExists is returned by Open when error-if-exists is set and a database is present.
	ErrExists = errors.New("engine: database exists")

	// ErrMissing is returned by Open when create-if-missing is unset and no database is present.
	ErrMissing = errors.New("engine: database does not exist")
)

// Batch is the engine's write batch.
type Batch = leveldb.Batch

// Iterator is the engine's cursor type.
type Iterator = iterator.Iterator

// Snapshot is the engine's point-in-time view.
type Snapshot = leveldb.Snapshot

// Settings is the open-time configuration passed to the engine.
type Settings struct {
	CreateIfMissing      bool
	ErrorIfExists        bool
	ParanoidChecks       bool
	WriteBufferSize      int
	MaxOpenFiles         int
	BlockSize            int
	BlockRestartInterval int
	Snappy               bool
	BlockCacheCapacity   int
	Logger               logging.Logger
}

func (s *Settings) options() *opt.Options {
	o := &opt.Options{
		ErrorIfMissing:         !s.CreateIfMissing,
		ErrorIfExist:           s.ErrorIfExists,
		WriteBuffer:            s.WriteBufferSize,
		OpenFilesCacheCapacity: s.MaxOpenFiles,
		BlockSize:              s.BlockSize,
		BlockRestartInterval:   s.BlockRestartInterval,
		BlockCacheCapacity:     s.BlockCacheCapacity,
		Compression:            opt.NoCompression,
	}
	if s.Snappy {
		o.Compression = opt.SnappyCompression
	}
	if s.ParanoidChecks {
		o.Strict = opt.StrictAll
	}
	return o
}

// ReadSettings is the per-read configuration.
type ReadSettings struct {
	VerifyChecksums bool
	FillCache       bool
}

func (r ReadSettings) options() *opt.ReadOptions {
	ro := &opt.ReadOptions{DontFillCache: !r.FillCache}
	if r.VerifyChecksums {
		ro.Strict = opt.StrictBlockChecksum
	}
	return ro
}

// logStorage forwards engine info-log lines to the layer logger.
type logStorage struct {
	storage.Storage
	log logging.Logger
}

func (s logStorage) Log(str string) {
	s.log.Debugf("%s%s", logging.NSEngine, str)
	s.Storage.Log(str)
}

func wrapStorage(stor storage.Storage, log logging.Logger) storage.Storage {
	if logging.IsNil(log) {
		return stor
	}
	return logStorage{Storage: stor, log: log}
}

// DB is an open engine instance. It owns the storage it was opened on.
type DB struct {
	ldb  *leveldb.DB
	stor storage.Storage
}

// Open opens the engine on stor. On failure stor is closed.
func Open(stor storage.Storage, s Settings) (*DB, error) {
	ldb, err := leveldb.Open(wrapStorage(stor, s.Logger), s.options())
	if err != nil {
		_ = stor.Close()
		switch {
		case os.IsExist(errors.Cause(err)):
			return nil, errors.Wrap(ErrExists, "open")
		case os.IsNotExist(errors.Cause(err)):
			return nil, errors.Wrap(ErrMissing, "open")
		}
		return nil, errors.Wrap(err, "open")
	}
	return &DB{ldb: ldb, stor: stor}, nil
}

// Recover rebuilds the manifest of the database on stor from its table
// files, dropping anything unreadable. stor is closed on return.
func Recover(stor storage.Storage, s Settings) error {
	o := s.options()
	o.ErrorIfMissing = false
	o.ErrorIfExist = false
	ldb, err := leveldb.Recover(wrapStorage(stor, s.Logger), o)
	if err != nil {
		_ = stor.Close()
		return errors.Wrap(err, "recover")
	}
	err = ldb.Close()
	if cerr := stor.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "recover")
}

// Get returns the value stored for key, or leveldb.ErrNotFound.
func (db *DB) Get(key []byte, rs ReadSettings, snap *Snapshot) ([]byte, error) {
	if snap != nil {
		return snap.Get(key, rs.options())
	}
	return db.ldb.Get(key, rs.options())
}

// Put stores value under key.
func (db *DB) Put(key, value []byte, sync bool) error {
	return errors.Wrap(db.ldb.Put(key, value, &opt.WriteOptions{Sync: sync}), "put")
}

// Delete removes key.
func (db *DB) Delete(key []byte, sync bool) error {
	return errors.Wrap(db.ldb.Delete(key, &opt.WriteOptions{Sync: sync}), "delete")
}

// Write applies b atomically.
func (db *DB) Write(b *Batch, sync bool) error {
	return errors.Wrap(db.ldb.Write(b, &opt.WriteOptions{Sync: sync}), "write")
}

// NewIterator returns a cursor over the whole key space. With a nil snap
// the view is fixed at the time of the call.
func (db *DB) NewIterator(rs ReadSettings, snap *Snapshot) Iterator {
	var full *util.Range
	if snap != nil {
		return snap.NewIterator(full, rs.options())
	}
	return db.ldb.NewIterator(full, rs.options())
}

// Snapshot acquires a point-in-time view. The caller releases it.
func (db *DB) Snapshot() (*Snapshot, error) {
	snap, err := db.ldb.GetSnapshot()
	return snap, errors.Wrap(err, "snapshot")
}

// Property returns an engine property value.
func (db *DB) Property(name string) (string, bool) {
	v, err := db.ldb.GetProperty(name)
	if err != nil {
		return "", false
	}
	return v, true
}

// Close closes the engine and then its storage.
func (db *DB) Close() error {
	err := db.ldb.Close()
	if cerr := db.stor.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "close")
}

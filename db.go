package lvlkv

// db.go implements the database handle.
//
// A DB owns one open engine instance bound to a path. Reads, writes and
// handle creation may run concurrently; they share the handle's read lock
// so the engine's own concurrency is preserved. Close takes the lock
// exclusively. Iterators and snapshots created from a DB must be released
// before Close; any still open at Close are force-released and the
// omission is reported as a usage violation.

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv/internal/engine"
	"github.com/aalhour/lvlkv/internal/logging"
)

// DB is an open database.
type DB struct {
	handle

	name  string
	key   string
	cfg   *openConfig
	log   Logger
	stats recorder

	mu  sync.RWMutex
	eng *engine.DB

	childMu sync.Mutex
	iters   map[*Iterator]struct{}
	snaps   map[*Snapshot]struct{}
}

// Open opens the database at path with opts.
//
// It fails with InvalidArgument for an empty path or nil or invalid
// options, AlreadyExists when error-if-exists is set and a database is
// present, NotFound when create-if-missing is unset and none is, and
// IOError or Corruption for storage faults. Opening a path already open in
// this process is a usage violation.
func Open(opts *Options, path string) (*DB, error) {
	const op = "Open"
	if path == "" {
		return nil, invalidArgument(op, "empty path")
	}
	cfg, err := opts.capture(op)
	if err != nil {
		return nil, err
	}

	key := registryKey(cfg.env, path)
	if !openPaths.claim(key) {
		cfg.release()
		return nil, violation("DB", op, path+" is already open in this process")
	}

	eng, err := openEngine(cfg, path)
	if err != nil {
		openPaths.release(key)
		cfg.release()
		cfg.log.Debugf("%sopen %s: %v", logging.NSDB, path, err)
		return nil, err
	}

	db := &DB{
		name:  path,
		key:   key,
		cfg:   cfg,
		log:   cfg.log,
		stats: cfg.stats,
		eng:   eng,
		iters: make(map[*Iterator]struct{}),
		snaps: make(map[*Snapshot]struct{}),
	}
	db.init("DB")
	opts.freeze()
	db.log.Infof("%sopened %s", logging.NSDB, path)
	return db, nil
}

func openEngine(cfg *openConfig, path string) (*engine.DB, error) {
	const op = "Open"
	fs := cfg.env.fs
	exists := fs.HasDatabase(path)
	switch {
	case exists && cfg.settings.ErrorIfExists:
		return nil, newError(CodeAlreadyExists, op, errors.Errorf("database %s exists", path))
	case !exists && !cfg.settings.CreateIfMissing:
		return nil, newError(CodeNotFound, op, errors.Errorf("database %s does not exist", path))
	}
	stor, err := fs.Open(path)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	eng, err := engine.Open(stor, cfg.settings)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	return eng, nil
}

// Name returns the path the database was opened with.
func (db *DB) Name() string {
	return db.name
}

// enter takes the shared lock for one call. On success the caller must
// call db.mu.RUnlock.
func (db *DB) enter(op string) *UsageError {
	db.mu.RLock()
	if db.released.Load() {
		db.mu.RUnlock()
		return violation(db.String(), op, "database closed")
	}
	return nil
}

// readView resolves ro against this database.
func (db *DB) readView(op string, ro *ReadOptions) (engine.ReadSettings, *engine.Snapshot, *UsageError) {
	rs, snap, uerr := ro.view(op)
	if uerr != nil || snap == nil {
		return rs, nil, uerr
	}
	if snap.released.Load() {
		return rs, nil, violation(snap.String(), op, "Snapshot already released")
	}
	if snap.db != db {
		return rs, nil, violation(snap.String(), op, "snapshot belongs to another database")
	}
	return rs, snap.snap, nil
}

// Get returns a copy of the value stored under key. A missing key returns
// an error matching ErrNotFound.
func (db *DB) Get(ro *ReadOptions, key []byte) ([]byte, error) {
	const op = "Get"
	if uerr := db.enter(op); uerr != nil {
		return nil, uerr
	}
	defer db.mu.RUnlock()
	rs, snap, uerr := db.readView(op, ro)
	if uerr != nil {
		return nil, uerr
	}

	start := time.Now()
	v, err := db.eng.Get(key, rs, snap)
	db.stats.since(HistogramDBGet, start)
	db.stats.tick(TickerKeysRead, 1)
	if err != nil {
		if engine.Classify(err) == engine.KindNotFound {
			db.stats.tick(TickerKeysNotFound, 1)
			return nil, ErrNotFound
		}
		return nil, wrapEngine(op, err)
	}
	db.stats.tick(TickerKeysFound, 1)
	db.stats.tick(TickerBytesRead, uint64(len(v)))
	db.stats.measure(HistogramBytesPerRead, uint64(len(v)))
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (db *DB) Put(wo *WriteOptions, key, value []byte) error {
	const op = "Put"
	if uerr := db.enter(op); uerr != nil {
		return uerr
	}
	defer db.mu.RUnlock()
	durable, uerr := wo.syncFor(op)
	if uerr != nil {
		return uerr
	}

	start := time.Now()
	if err := db.eng.Put(key, value, durable); err != nil {
		return wrapEngine(op, err)
	}
	db.stats.since(HistogramDBWrite, start)
	db.stats.tick(TickerKeysWritten, 1)
	n := uint64(len(key) + len(value))
	db.stats.tick(TickerBytesWritten, n)
	db.stats.measure(HistogramBytesPerWrite, n)
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (db *DB) Delete(wo *WriteOptions, key []byte) error {
	const op = "Delete"
	if uerr := db.enter(op); uerr != nil {
		return uerr
	}
	defer db.mu.RUnlock()
	durable, uerr := wo.syncFor(op)
	if uerr != nil {
		return uerr
	}

	start := time.Now()
	if err := db.eng.Delete(key, durable); err != nil {
		return wrapEngine(op, err)
	}
	db.stats.since(HistogramDBWrite, start)
	db.stats.tick(TickerKeysDeleted, 1)
	return nil
}

// Write applies batch atomically. On error none of its entries are applied.
func (db *DB) Write(wo *WriteOptions, batch *WriteBatch) error {
	const op = "Write"
	if uerr := db.enter(op); uerr != nil {
		return uerr
	}
	defer db.mu.RUnlock()
	if batch == nil {
		return invalidArgument(op, "nil batch")
	}
	if uerr := batch.check(op); uerr != nil {
		return uerr
	}
	durable, uerr := wo.syncFor(op)
	if uerr != nil {
		return uerr
	}

	start := time.Now()
	if err := db.eng.Write(&batch.b, durable); err != nil {
		return wrapEngine(op, err)
	}
	db.stats.since(HistogramDBWrite, start)
	entries := uint64(batch.b.Len())
	db.stats.tick(TickerBatchesWritten, 1)
	db.stats.tick(TickerBatchEntriesWritten, entries)
	db.stats.measure(HistogramBatchEntries, entries)
	n := uint64(batch.size())
	db.stats.tick(TickerBytesWritten, n)
	db.stats.measure(HistogramBytesPerWrite, n)
	return nil
}

// NewIterator returns an unpositioned iterator over a fixed view: the
// snapshot bound to ro, or the current state. Close it before the DB.
func (db *DB) NewIterator(ro *ReadOptions) (*Iterator, error) {
	const op = "NewIterator"
	if uerr := db.enter(op); uerr != nil {
		return nil, uerr
	}
	defer db.mu.RUnlock()
	rs, snap, uerr := db.readView(op, ro)
	if uerr != nil {
		return nil, uerr
	}

	it := &Iterator{db: db, it: db.eng.NewIterator(rs, snap)}
	it.init("Iterator")
	db.childMu.Lock()
	db.iters[it] = struct{}{}
	db.childMu.Unlock()
	db.stats.tick(TickerIteratorsCreated, 1)
	return it, nil
}

func (db *DB) dropIterator(it *Iterator) {
	db.childMu.Lock()
	delete(db.iters, it)
	db.childMu.Unlock()
}

// NewSnapshot captures the current state. Release it with ReleaseSnapshot
// before the DB closes.
func (db *DB) NewSnapshot() (*Snapshot, error) {
	const op = "NewSnapshot"
	if uerr := db.enter(op); uerr != nil {
		return nil, uerr
	}
	defer db.mu.RUnlock()

	es, err := db.eng.Snapshot()
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	s := &Snapshot{db: db, snap: es}
	s.init("Snapshot")
	db.childMu.Lock()
	db.snaps[s] = struct{}{}
	db.childMu.Unlock()
	db.stats.tick(TickerSnapshotsCreated, 1)
	return s, nil
}

// ReleaseSnapshot releases s, which must have been created by this DB.
func (db *DB) ReleaseSnapshot(s *Snapshot) error {
	const op = "ReleaseSnapshot"
	if uerr := db.enter(op); uerr != nil {
		return uerr
	}
	defer db.mu.RUnlock()
	if s == nil {
		return invalidArgument(op, "nil snapshot")
	}
	if s.db != db {
		return violation(s.String(), op, "snapshot belongs to another database")
	}
	if uerr := s.release(op); uerr != nil {
		return uerr
	}
	db.childMu.Lock()
	delete(db.snaps, s)
	db.childMu.Unlock()
	s.snap.Release()
	db.stats.tick(TickerSnapshotsReleased, 1)
	return nil
}

// outstanding returns the number of open iterators and snapshots.
func (db *DB) outstanding() (iters, snaps int) {
	db.childMu.Lock()
	defer db.childMu.Unlock()
	return len(db.iters), len(db.snaps)
}

// Close closes the database. Iterators and snapshots still open are
// force-released and reported as a usage violation after the engine has
// been closed. A second Close is a usage violation.
func (db *DB) Close() error {
	const op = "Close"
	db.mu.Lock()
	if !db.released.CompareAndSwap(false, true) {
		db.mu.Unlock()
		return violation(db.String(), op, "database already closed")
	}

	db.childMu.Lock()
	iters, snaps := len(db.iters), len(db.snaps)
	for it := range db.iters {
		it.orphan()
	}
	for s := range db.snaps {
		s.released.Store(true)
		s.snap.Release()
	}
	clear(db.iters)
	clear(db.snaps)
	db.childMu.Unlock()

	err := db.eng.Close()
	openPaths.release(db.key)
	db.cfg.release()
	db.mu.Unlock()

	if err != nil {
		db.log.Errorf("%sclose %s: %v", logging.NSDB, db.name, err)
	} else {
		db.log.Infof("%sclosed %s", logging.NSDB, db.name)
	}

	if iters+snaps > 0 {
		db.stats.tick(TickerForcedReleases, uint64(iters+snaps))
		reason := fmt.Sprintf("closed with %s and %s outstanding",
			plural(iters, "iterator"), plural(snaps, "snapshot"))
		db.log.Errorf("%s%s %s", logging.NSHandle, db.name, reason)
		return violation(db.String(), op, reason)
	}
	return wrapEngine(op, err)
}

// PropertyValue returns the value of a database property. Engine
// properties use the "leveldb." prefix; layer properties use "lvlkv.".
// Unknown names return ("", false).
func (db *DB) PropertyValue(name string) (string, bool) {
	if uerr := db.enter("PropertyValue"); uerr != nil {
		return "", false
	}
	defer db.mu.RUnlock()

	switch name {
	case PropertyOutstandingIterators:
		iters, _ := db.outstanding()
		return strconv.Itoa(iters), true
	case PropertyOutstandingSnapshots:
		_, snaps := db.outstanding()
		return strconv.Itoa(snaps), true
	case PropertyStats:
		if db.stats.s == nil {
			return "", false
		}
		return db.stats.s.String(), true
	}
	return db.eng.Property(name)
}

package lvlkv

// options.go implements the Options, ReadOptions and WriteOptions handles.
//
// Options are plain configuration until passed to Open: no I/O happens
// before then. Once a database opens with a bundle, the bundle is frozen
// and later setters are usage violations. The bundle may still be reused
// for further opens and destroyed at any time; a database keeps the
// settings it captured.

import (
	"sync"
	"sync/atomic"

	"github.com/aalhour/lvlkv/internal/engine"
	"github.com/aalhour/lvlkv/internal/logging"
)

// Compression selects the engine's block compression.
type Compression int

const (
	// NoCompression stores blocks uncompressed.
	NoCompression Compression = 0
	// SnappyCompression compresses blocks with snappy.
	SnappyCompression Compression = 1
)

// Engine defaults, as documented for LevelDB.
const (
	DefaultWriteBufferSize      = 4 << 20
	DefaultMaxOpenFiles         = 1000
	DefaultBlockSize            = 4 << 10
	DefaultBlockRestartInterval = 16
)

// Logger is the info-log interface accepted by SetInfoLog.
type Logger = logging.Logger

// LogLevel is the level of a DefaultLogger.
type LogLevel = logging.Level

// Log levels for NewLogger.
const (
	LogLevelError = logging.LevelError
	LogLevelWarn  = logging.LevelWarn
	LogLevelInfo  = logging.LevelInfo
	LogLevelDebug = logging.LevelDebug
)

// NewLogger returns a leveled logger writing to stderr.
func NewLogger(level LogLevel) Logger {
	return logging.NewDefaultLogger(level)
}

// Options is the open-time configuration bundle.
type Options struct {
	handle

	mu     sync.Mutex
	frozen bool

	createIfMissing      bool
	errorIfExists        bool
	paranoidChecks       bool
	writeBufferSize      int
	maxOpenFiles         int
	blockSize            int
	blockRestartInterval int
	compression          Compression
	cache                *Cache
	env                  *Env
	infoLog              Logger
	stats                Statistics
}

// NewOptions returns a bundle holding the engine defaults.
func NewOptions() *Options {
	o := &Options{
		writeBufferSize:      DefaultWriteBufferSize,
		maxOpenFiles:         DefaultMaxOpenFiles,
		blockSize:            DefaultBlockSize,
		blockRestartInterval: DefaultBlockRestartInterval,
		compression:          SnappyCompression,
	}
	o.init("Options")
	return o
}

// set runs fn under the lock unless the bundle is released or frozen.
func (o *Options) set(op string, fn func() *UsageError) {
	if uerr := o.check(op); uerr != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.frozen {
		violation(o.String(), op, "options already used to open a database")
		return
	}
	fn()
}

// get runs fn under the lock unless the bundle is released.
func (o *Options) get(op string, fn func()) {
	if uerr := o.check(op); uerr != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

// SetCreateIfMissing makes Open create the database if it does not exist.
func (o *Options) SetCreateIfMissing(v bool) {
	o.set("SetCreateIfMissing", func() *UsageError { o.createIfMissing = v; return nil })
}

// SetErrorIfExists makes Open fail with AlreadyExists if the database exists.
func (o *Options) SetErrorIfExists(v bool) {
	o.set("SetErrorIfExists", func() *UsageError { o.errorIfExists = v; return nil })
}

// SetParanoidChecks makes the engine verify all data it reads and fail on
// any inconsistency instead of skipping it.
func (o *Options) SetParanoidChecks(v bool) {
	o.set("SetParanoidChecks", func() *UsageError { o.paranoidChecks = v; return nil })
}

// SetWriteBufferSize sets the memtable size in bytes.
func (o *Options) SetWriteBufferSize(n int) {
	o.set("SetWriteBufferSize", func() *UsageError { o.writeBufferSize = n; return nil })
}

// SetMaxOpenFiles sets the number of table files the engine keeps open.
func (o *Options) SetMaxOpenFiles(n int) {
	o.set("SetMaxOpenFiles", func() *UsageError { o.maxOpenFiles = n; return nil })
}

// SetBlockSize sets the approximate uncompressed table block size.
func (o *Options) SetBlockSize(n int) {
	o.set("SetBlockSize", func() *UsageError { o.blockSize = n; return nil })
}

// SetBlockRestartInterval sets the number of keys between restart points.
func (o *Options) SetBlockRestartInterval(n int) {
	o.set("SetBlockRestartInterval", func() *UsageError { o.blockRestartInterval = n; return nil })
}

// SetCompression sets block compression. Values other than NoCompression
// and SnappyCompression are rejected by Open with InvalidArgument.
func (o *Options) SetCompression(c Compression) {
	o.set("SetCompression", func() *UsageError { o.compression = c; return nil })
}

// SetCache sets the shared block cache. nil selects the engine's private
// default cache. Attaching a destroyed cache is a usage violation.
func (o *Options) SetCache(c *Cache) {
	o.set("SetCache", func() *UsageError {
		if c != nil && !c.ref.attach() {
			return violation(c.String(), "SetCache", "Cache already destroyed")
		}
		if o.cache != nil {
			o.cache.ref.detach()
		}
		o.cache = c
		return nil
	})
}

// SetEnv sets the storage environment. nil selects OS directories.
// Attaching a destroyed Env is a usage violation.
func (o *Options) SetEnv(e *Env) {
	o.set("SetEnv", func() *UsageError {
		if e != nil && !e.ref.attach() {
			return violation(e.String(), "SetEnv", "Env already destroyed")
		}
		if o.env != nil {
			o.env.ref.detach()
		}
		o.env = e
		return nil
	})
}

// SetInfoLog sets the logger used by databases opened with this bundle.
// nil restores the default WARN-level stderr logger.
func (o *Options) SetInfoLog(l Logger) {
	o.set("SetInfoLog", func() *UsageError { o.infoLog = l; return nil })
}

// SetStatistics attaches a statistics collector. nil detaches it.
func (o *Options) SetStatistics(s Statistics) {
	o.set("SetStatistics", func() *UsageError { o.stats = s; return nil })
}

// CreateIfMissing returns the create-if-missing flag.
func (o *Options) CreateIfMissing() (v bool) {
	o.get("CreateIfMissing", func() { v = o.createIfMissing })
	return v
}

// ErrorIfExists returns the error-if-exists flag.
func (o *Options) ErrorIfExists() (v bool) {
	o.get("ErrorIfExists", func() { v = o.errorIfExists })
	return v
}

// ParanoidChecks returns the paranoid-checks flag.
func (o *Options) ParanoidChecks() (v bool) {
	o.get("ParanoidChecks", func() { v = o.paranoidChecks })
	return v
}

// WriteBufferSize returns the memtable size in bytes.
func (o *Options) WriteBufferSize() (n int) {
	o.get("WriteBufferSize", func() { n = o.writeBufferSize })
	return n
}

// MaxOpenFiles returns the open table file limit.
func (o *Options) MaxOpenFiles() (n int) {
	o.get("MaxOpenFiles", func() { n = o.maxOpenFiles })
	return n
}

// BlockSize returns the table block size.
func (o *Options) BlockSize() (n int) {
	o.get("BlockSize", func() { n = o.blockSize })
	return n
}

// BlockRestartInterval returns the restart interval.
func (o *Options) BlockRestartInterval() (n int) {
	o.get("BlockRestartInterval", func() { n = o.blockRestartInterval })
	return n
}

// Compression returns the block compression.
func (o *Options) Compression() (c Compression) {
	o.get("Compression", func() { c = o.compression })
	return c
}

// Cache returns the attached cache, or nil.
func (o *Options) Cache() (c *Cache) {
	o.get("Cache", func() { c = o.cache })
	return c
}

// Env returns the attached environment, or nil.
func (o *Options) Env() (e *Env) {
	o.get("Env", func() { e = o.env })
	return e
}

// Frozen reports whether a database has been opened with this bundle.
func (o *Options) Frozen() (v bool) {
	o.get("Frozen", func() { v = o.frozen })
	return v
}

// Destroy releases the bundle and its references on Cache and Env. It never
// destroys them; databases opened with the bundle are unaffected.
func (o *Options) Destroy() {
	if uerr := o.release("Destroy"); uerr != nil {
		return
	}
	o.mu.Lock()
	cache, env := o.cache, o.env
	o.cache, o.env = nil, nil
	o.mu.Unlock()
	if cache != nil {
		cache.ref.detach()
	}
	if env != nil {
		env.ref.detach()
	}
}

func (o *Options) freeze() {
	o.mu.Lock()
	o.frozen = true
	o.mu.Unlock()
}

// openConfig is what a database captures from Options at open time.
type openConfig struct {
	settings engine.Settings
	env      *Env
	cache    *Cache
	log      Logger
	stats    recorder
}

// release drops the database refs taken by capture.
func (c *openConfig) release() {
	if c.cache != nil {
		c.cache.ref.releaseDB()
	}
	if c.env != processEnv {
		c.env.ref.releaseDB()
	}
}

// capture validates the bundle and takes database refs on its Cache and Env.
// The caller must call release on the result.
func (o *Options) capture(op string) (*openConfig, error) {
	if o == nil {
		return nil, invalidArgument(op, "nil options")
	}
	if uerr := o.check(op); uerr != nil {
		return nil, uerr
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.validate(op); err != nil {
		return nil, err
	}

	cfg := &openConfig{
		settings: engine.Settings{
			CreateIfMissing:      o.createIfMissing,
			ErrorIfExists:        o.errorIfExists,
			ParanoidChecks:       o.paranoidChecks,
			WriteBufferSize:      o.writeBufferSize,
			MaxOpenFiles:         o.maxOpenFiles,
			BlockSize:            o.blockSize,
			BlockRestartInterval: o.blockRestartInterval,
			Snappy:               o.compression == SnappyCompression,
		},
		env:   processEnv,
		log:   logging.OrDefault(o.infoLog),
		stats: recorder{s: o.stats},
	}
	cfg.settings.Logger = cfg.log

	if o.cache != nil {
		if !o.cache.ref.acquireDB() {
			return nil, violation(o.cache.String(), op, "options reference a destroyed Cache")
		}
		cfg.cache = o.cache
		cfg.settings.BlockCacheCapacity = o.cache.capacity
	}
	if o.env != nil {
		if !o.env.ref.acquireDB() {
			if cfg.cache != nil {
				cfg.cache.ref.releaseDB()
			}
			return nil, violation(o.env.String(), op, "options reference a destroyed Env")
		}
		cfg.env = o.env
	}
	return cfg, nil
}

func (o *Options) validate(op string) error {
	switch o.compression {
	case NoCompression, SnappyCompression:
	default:
		return invalidArgument(op, "unknown compression %d", o.compression)
	}
	sizes := []struct {
		name string
		v    int
	}{
		{"write buffer size", o.writeBufferSize},
		{"max open files", o.maxOpenFiles},
		{"block size", o.blockSize},
		{"block restart interval", o.blockRestartInterval},
	}
	for _, s := range sizes {
		if s.v < 0 {
			return invalidArgument(op, "negative %s %d", s.name, s.v)
		}
	}
	if o.cache != nil && o.cache.capacity < 0 {
		return invalidArgument(op, "negative cache capacity %d", o.cache.capacity)
	}
	return nil
}

// ReadOptions is the per-read configuration.
type ReadOptions struct {
	handle

	mu              sync.Mutex
	verifyChecksums bool
	fillCache       bool
	snapshot        *Snapshot
}

// NewReadOptions returns read options with fill-cache on and no snapshot.
func NewReadOptions() *ReadOptions {
	ro := &ReadOptions{fillCache: true}
	ro.init("ReadOptions")
	return ro
}

// SetVerifyChecksums makes reads verify block checksums.
func (ro *ReadOptions) SetVerifyChecksums(v bool) {
	if uerr := ro.check("SetVerifyChecksums"); uerr != nil {
		return
	}
	ro.mu.Lock()
	ro.verifyChecksums = v
	ro.mu.Unlock()
}

// SetFillCache controls whether blocks read are added to the block cache.
func (ro *ReadOptions) SetFillCache(v bool) {
	if uerr := ro.check("SetFillCache"); uerr != nil {
		return
	}
	ro.mu.Lock()
	ro.fillCache = v
	ro.mu.Unlock()
}

// SetSnapshot fixes reads to s. nil reads the latest state. Binding does not
// extend the snapshot's lifetime.
func (ro *ReadOptions) SetSnapshot(s *Snapshot) {
	if uerr := ro.check("SetSnapshot"); uerr != nil {
		return
	}
	ro.mu.Lock()
	ro.snapshot = s
	ro.mu.Unlock()
}

// VerifyChecksums returns the verify-checksums flag.
func (ro *ReadOptions) VerifyChecksums() bool {
	if uerr := ro.check("VerifyChecksums"); uerr != nil {
		return false
	}
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return ro.verifyChecksums
}

// FillCache returns the fill-cache flag.
func (ro *ReadOptions) FillCache() bool {
	if uerr := ro.check("FillCache"); uerr != nil {
		return false
	}
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return ro.fillCache
}

// Snapshot returns the bound snapshot, or nil.
func (ro *ReadOptions) Snapshot() *Snapshot {
	if uerr := ro.check("Snapshot"); uerr != nil {
		return nil
	}
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return ro.snapshot
}

// Destroy releases the read options.
func (ro *ReadOptions) Destroy() {
	if uerr := ro.release("Destroy"); uerr != nil {
		return
	}
	ro.mu.Lock()
	ro.snapshot = nil
	ro.mu.Unlock()
}

// view returns the engine read settings and bound snapshot. A nil
// receiver means defaults.
func (ro *ReadOptions) view(op string) (engine.ReadSettings, *Snapshot, *UsageError) {
	if ro == nil {
		return engine.ReadSettings{FillCache: true}, nil, nil
	}
	if uerr := ro.check(op); uerr != nil {
		return engine.ReadSettings{}, nil, uerr
	}
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return engine.ReadSettings{
		VerifyChecksums: ro.verifyChecksums,
		FillCache:       ro.fillCache,
	}, ro.snapshot, nil
}

// WriteOptions is the per-write configuration.
type WriteOptions struct {
	handle
	sync atomic.Bool
}

// NewWriteOptions returns write options with sync off.
func NewWriteOptions() *WriteOptions {
	wo := &WriteOptions{}
	wo.init("WriteOptions")
	return wo
}

// SetSync makes writes wait for the journal to reach stable storage.
func (wo *WriteOptions) SetSync(v bool) {
	if uerr := wo.check("SetSync"); uerr != nil {
		return
	}
	wo.sync.Store(v)
}

// Sync returns the sync flag.
func (wo *WriteOptions) Sync() bool {
	if uerr := wo.check("Sync"); uerr != nil {
		return false
	}
	return wo.sync.Load()
}

// Destroy releases the write options.
func (wo *WriteOptions) Destroy() {
	_ = wo.release("Destroy")
}

// syncFor returns the sync flag for op. A nil receiver means no sync.
func (wo *WriteOptions) syncFor(op string) (bool, *UsageError) {
	if wo == nil {
		return false, nil
	}
	if uerr := wo.check(op); uerr != nil {
		return false, uerr
	}
	return wo.sync.Load(), nil
}

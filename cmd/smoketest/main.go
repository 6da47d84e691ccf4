// End-to-end smoke test for lvlkv.
//
// Use `smoketest` to run a fast end-to-end check across the handle layer.
// `smoketest` creates databases, writes data, reopens them, and verifies
// results. It exercises batches, snapshots, iterators, the usage policy,
// dump streams, repair and destroy.
//
// Run a smoke test:
//
// ```bash
// ./bin/smoketest --keys=10000 --value-size=1000
// ```
package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/aalhour/lvlkv"
	"github.com/aalhour/lvlkv/dump"
	"github.com/aalhour/lvlkv/internal/logging"
)

const testDirPrefix = "lvlkv-smoke-"

var (
	keysFlag = cli.IntFlag{
		Name:  "keys",
		Usage: "number of keys to write",
		Value: 10000,
	}
	valueSizeFlag = cli.IntFlag{
		Name:  "value-size",
		Usage: "size of each value in bytes",
		Value: 1000,
	}
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "database directory (default: temp directory)",
	}
	keepFlag = cli.BoolFlag{
		Name:  "keep",
		Usage: "keep databases after the run",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "v",
		Usage: "verbose output",
	}
)

// smoke carries the shared state of one run.
type smoke struct {
	out     io.Writer
	verbose bool
	log     lvlkv.Logger
	keys    [][]byte
	values  [][]byte
}

type smokeTest struct {
	name string
	fn   func(*smoke, string) error
}

var tests = []smokeTest{
	// Core operations
	{"Basic Write/Read", testBasicWriteRead},
	{"Persistence (Close/Reopen)", testPersistence},
	{"Odd Overwrite Scan", testOddOverwrite},
	{"Batch Supersession", testBatchSupersession},
	{"Uncompressed Tables", testNoCompression},

	// Snapshots and iterators
	{"Snapshot Isolation", testSnapshotIsolation},
	{"Iterator Ordering", testIteratorOrdering},

	// Handle lifecycle
	{"Close With Outstanding Handles", testCloseOutstanding},
	{"Shared Cache", testSharedCache},

	// Tooling
	{"Dump Round Trip", testDumpRoundTrip},
	{"Repair", testRepair},
	{"Destroy", testDestroy},
}

func main() {
	os.Exit(runWithArgs(os.Args, os.Stdout, os.Stderr))
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp()
	app.Name = "smoketest"
	app.Usage = "end-to-end smoke test for lvlkv"
	app.HideVersion = true
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{keysFlag, valueSizeFlag, dbFlag, keepFlag, verboseFlag}
	app.Action = func(ctx *cli.Context) error {
		return run(ctx, stdout, stderr)
	}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx *cli.Context, stdout, stderr io.Writer) error {
	n, size := ctx.Int(keysFlag.Name), ctx.Int(valueSizeFlag.Name)
	if n <= 0 || size < 16 {
		return errors.Errorf("--keys must be positive and --value-size at least 16")
	}

	rl := logrus.New()
	rl.Out = stderr
	rl.SetLevel(logrus.WarnLevel)
	if ctx.Bool(verboseFlag.Name) {
		rl.SetLevel(logrus.DebugLevel)
	}
	s := &smoke{
		out:     stdout,
		verbose: ctx.Bool(verboseFlag.Name),
		log:     logging.NewLogrus(rl),
	}

	fmt.Fprintln(stdout, "lvlkv smoke test")
	fmt.Fprintf(stdout, "Keys: %d, Value Size: %d bytes\n\n", n, size)

	testDir := ctx.String(dbFlag.Name)
	if testDir == "" {
		dir, err := os.MkdirTemp("", testDirPrefix+"*")
		if err != nil {
			return errors.Wrap(err, "create temp dir")
		}
		testDir = dir
		if !ctx.Bool(keepFlag.Name) {
			defer os.RemoveAll(testDir)
		}
	}
	fmt.Fprintf(stdout, "Database path: %s\n", testDir)

	start := time.Now()
	s.keys, s.values = generateTestData(n, size)
	s.logf("Generated test data (%v)", time.Since(start))

	passed, failed := 0, 0
	for _, t := range tests {
		fmt.Fprintf(stdout, "\nTest: %s\n", t.name)
		testPath := filepath.Join(testDir, sanitizeName(t.name))
		_ = os.RemoveAll(testPath)

		start := time.Now()
		err := t.fn(s, testPath)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(stdout, "   FAILED: %v (%v)\n", err, elapsed)
			failed++
		} else {
			fmt.Fprintf(stdout, "   PASSED (%v)\n", elapsed)
			passed++
		}
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Results: %d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return errors.Errorf("%d smoke tests failed", failed)
	}
	fmt.Fprintln(stdout, "SMOKE TEST PASSED")
	if ctx.Bool(keepFlag.Name) {
		fmt.Fprintf(stdout, "\nDatabases kept at: %s\n", testDir)
	}
	return nil
}

func (s *smoke) logf(format string, args ...any) {
	if s.verbose {
		fmt.Fprintf(s.out, "   "+format+"\n", args...)
	}
}

func generateTestData(n int, valueSize int) ([][]byte, [][]byte) {
	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := range n {
		keys[i] = fmt.Appendf(nil, "key%08d", i)
		values[i] = make([]byte, valueSize)
		_, _ = rand.Read(values[i])
		// Embed key index in value for verification
		copy(values[i], fmt.Sprintf("idx=%08d|", i))
	}
	return keys, values
}

func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			result = append(result, byte(c))
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

// open opens path with create-if-missing after applying configure. The
// returned function closes the database and releases its options.
func (s *smoke) open(path string, configure func(*lvlkv.Options)) (*lvlkv.DB, func() error, error) {
	opts := lvlkv.NewOptions()
	opts.SetCreateIfMissing(true)
	opts.SetInfoLog(s.log)
	if configure != nil {
		configure(opts)
	}
	db, err := lvlkv.Open(opts, path)
	if err != nil {
		opts.Destroy()
		return nil, nil, errors.Wrap(err, "open failed")
	}
	return db, func() error {
		err := db.Close()
		opts.Destroy()
		return err
	}, nil
}

func (s *smoke) writeAll(db *lvlkv.DB) error {
	for i := range s.keys {
		if err := db.Put(nil, s.keys[i], s.values[i]); err != nil {
			return errors.Wrapf(err, "put %d failed", i)
		}
	}
	s.logf("Wrote %d keys", len(s.keys))
	return nil
}

func (s *smoke) verifyAll(db *lvlkv.DB) error {
	for i := range s.keys {
		val, err := db.Get(nil, s.keys[i])
		if err != nil {
			return errors.Wrapf(err, "get %d failed", i)
		}
		if !bytes.Equal(val, s.values[i]) {
			return errors.Errorf("value mismatch at key %d", i)
		}
	}
	s.logf("Verified %d keys", len(s.keys))
	return nil
}

// =============================================================================
// Core operations
// =============================================================================

func testBasicWriteRead(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	if err := s.writeAll(db); err != nil {
		_ = done()
		return err
	}
	if err := s.verifyAll(db); err != nil {
		_ = done()
		return err
	}
	return done()
}

func testPersistence(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	if err := s.writeAll(db); err != nil {
		_ = done()
		return err
	}
	if err := done(); err != nil {
		return errors.Wrap(err, "close failed")
	}

	for session := range 2 {
		db, done, err = s.open(path, nil)
		if err != nil {
			return errors.Wrapf(err, "reopen %d", session)
		}
		err = s.verifyAll(db)
		if cerr := done(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func testOddOverwrite(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()

	for i := range 1000 {
		if err := db.Put(nil, fmt.Appendf(nil, "%d", i), fmt.Appendf(nil, "the number %d", i)); err != nil {
			return err
		}
	}
	for i := 1; i < 1000; i += 2 {
		if err := db.Put(nil, fmt.Appendf(nil, "%d", i), fmt.Appendf(nil, "the number %d odd", i)); err != nil {
			return err
		}
	}

	it, err := db.NewIterator(nil)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()
	count := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		var k int
		if _, err := fmt.Sscanf(string(it.Key()), "%d", &k); err != nil {
			return errors.Wrapf(err, "key %q", it.Key())
		}
		if odd := strings.Contains(string(it.Value()), "odd"); odd != (k%2 == 1) {
			return errors.Errorf("key %d: value %q", k, it.Value())
		}
		count++
	}
	if err := it.Error(); err != nil {
		return err
	}
	if count != 1000 {
		return errors.Errorf("scanned %d keys, want 1000", count)
	}
	return nil
}

func testBatchSupersession(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()

	wb := lvlkv.NewWriteBatch()
	defer wb.Destroy()
	for i := range s.keys {
		wb.Put(s.keys[i], []byte("stale"))
		wb.Delete(s.keys[i])
		wb.Put(s.keys[i], s.values[i])
	}
	if err := db.Write(nil, wb); err != nil {
		return errors.Wrap(err, "write failed")
	}
	s.logf("Wrote batch of %d operations", wb.Count())
	return s.verifyAll(db)
}

func testNoCompression(s *smoke, path string) error {
	db, done, err := s.open(path, func(o *lvlkv.Options) {
		o.SetCompression(lvlkv.NoCompression)
		o.SetBlockSize(4 << 10)
	})
	if err != nil {
		return err
	}
	if err := s.writeAll(db); err != nil {
		_ = done()
		return err
	}
	if err := done(); err != nil {
		return err
	}
	db, done, err = s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()
	return s.verifyAll(db)
}

// =============================================================================
// Snapshots and iterators
// =============================================================================

func testSnapshotIsolation(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()

	if err := s.writeAll(db); err != nil {
		return err
	}
	snap, err := db.NewSnapshot()
	if err != nil {
		return err
	}
	defer func() { _ = db.ReleaseSnapshot(snap) }()

	for i := range s.keys {
		if i%2 == 0 {
			err = db.Delete(nil, s.keys[i])
		} else {
			err = db.Put(nil, s.keys[i], []byte("changed"))
		}
		if err != nil {
			return err
		}
	}

	ro := lvlkv.NewReadOptions()
	defer ro.Destroy()
	ro.SetSnapshot(snap)
	for i := range s.keys {
		val, err := db.Get(ro, s.keys[i])
		if err != nil {
			return errors.Wrapf(err, "snapshot get %d", i)
		}
		if !bytes.Equal(val, s.values[i]) {
			return errors.Errorf("snapshot value mismatch at key %d", i)
		}
	}
	if _, err := db.Get(nil, s.keys[0]); !errors.Is(err, lvlkv.ErrNotFound) {
		return errors.Errorf("latest read of deleted key: %v", err)
	}
	return nil
}

func testIteratorOrdering(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()

	// Insert in reverse to make sure order comes from the keys.
	for i := len(s.keys) - 1; i >= 0; i-- {
		if err := db.Put(nil, s.keys[i], s.values[i]); err != nil {
			return err
		}
	}

	it, err := db.NewIterator(nil)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	i := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if i >= len(s.keys) || !bytes.Equal(it.Key(), s.keys[i]) {
			return errors.Errorf("forward position %d: key %q", i, it.Key())
		}
		i++
	}
	if i != len(s.keys) {
		return errors.Errorf("forward scan saw %d keys, want %d", i, len(s.keys))
	}
	for it.SeekToLast(); it.Valid(); it.Prev() {
		i--
		if !bytes.Equal(it.Key(), s.keys[i]) {
			return errors.Errorf("reverse position %d: key %q", i, it.Key())
		}
	}
	if i != 0 {
		return errors.Errorf("reverse scan stopped at %d", i)
	}
	return it.Error()
}

// =============================================================================
// Handle lifecycle
// =============================================================================

func testCloseOutstanding(s *smoke, path string) error {
	var violations []*lvlkv.UsageError
	prev := lvlkv.SetUsageHandler(func(e *lvlkv.UsageError) { violations = append(violations, e) })
	defer lvlkv.SetUsageHandler(prev)

	stats := lvlkv.NewStatistics()
	db, done, err := s.open(path, func(o *lvlkv.Options) { o.SetStatistics(stats) })
	if err != nil {
		return err
	}
	if err := db.Put(nil, []byte("k"), []byte("v")); err != nil {
		_ = done()
		return err
	}
	it, err := db.NewIterator(nil)
	if err != nil {
		_ = done()
		return err
	}
	if _, err := db.NewSnapshot(); err != nil {
		_ = done()
		return err
	}

	if err := done(); !errors.Is(err, lvlkv.ErrUsage) {
		return errors.Errorf("close with children = %v, want a usage violation", err)
	}
	if len(violations) != 1 {
		return errors.Errorf("%d violations reported, want 1", len(violations))
	}
	if n := stats.GetTickerCount(lvlkv.TickerForcedReleases); n != 2 {
		return errors.Errorf("forced releases = %d, want 2", n)
	}
	it.SeekToFirst()
	if len(violations) != 2 {
		return errors.New("orphaned iterator use not reported")
	}
	s.logf("Reported: %v", violations[0])

	db, done, err = s.open(path, nil)
	if err != nil {
		return errors.Wrap(err, "reopen after forced close")
	}
	defer func() { _ = done() }()
	val, err := db.Get(nil, []byte("k"))
	if err != nil || string(val) != "v" {
		return errors.Errorf("reopened get = %q, %v", val, err)
	}
	return nil
}

func testSharedCache(s *smoke, path string) error {
	cache := lvlkv.NewLRUCache(8 << 20)
	withCache := func(o *lvlkv.Options) { o.SetCache(cache) }

	a, doneA, err := s.open(filepath.Join(path, "a"), withCache)
	if err != nil {
		return err
	}
	b, doneB, err := s.open(filepath.Join(path, "b"), withCache)
	if err != nil {
		_ = doneA()
		return err
	}
	err = s.writeAll(a)
	if err == nil {
		err = s.writeAll(b)
	}
	if err == nil {
		err = s.verifyAll(a)
	}
	if cerr := doneA(); err == nil {
		err = cerr
	}
	if cerr := doneB(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return cache.Destroy()
}

// =============================================================================
// Tooling
// =============================================================================

func testDumpRoundTrip(s *smoke, path string) error {
	src, doneSrc, err := s.open(filepath.Join(path, "src"), nil)
	if err != nil {
		return err
	}
	defer func() { _ = doneSrc() }()
	if err := s.writeAll(src); err != nil {
		return err
	}

	for _, codec := range []dump.Codec{dump.CodecNone, dump.CodecSnappy, dump.CodecLZ4, dump.CodecZstd} {
		var buf bytes.Buffer
		n, err := dump.Export(src, nil, &buf, &dump.ExportOptions{
			WriterOptions: dump.WriterOptions{Codec: codec},
			Logger:        s.log,
		})
		if err != nil {
			return errors.Wrapf(err, "export %s", codec)
		}
		s.logf("Exported %d records with %s in %d bytes", n, codec, buf.Len())

		dst, doneDst, err := s.open(filepath.Join(path, "dst-"+codec.String()), nil)
		if err != nil {
			return err
		}
		if _, err := dump.Import(dst, nil, &buf, &dump.ImportOptions{Logger: s.log}); err != nil {
			_ = doneDst()
			return errors.Wrapf(err, "import %s", codec)
		}
		err = s.verifyAll(dst)
		if cerr := doneDst(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func testRepair(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	err = s.writeAll(db)
	if cerr := done(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	// Reopening moves the journal into a table, which is what repair scans.
	if _, done, err = s.open(path, nil); err != nil {
		return err
	}
	if err := done(); err != nil {
		return err
	}

	opts := lvlkv.NewOptions()
	defer opts.Destroy()
	opts.SetInfoLog(s.log)
	if err := lvlkv.RepairDB(opts, path); err != nil {
		return errors.Wrap(err, "repair failed")
	}

	db, done, err = s.open(path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = done() }()
	return s.verifyAll(db)
}

func testDestroy(s *smoke, path string) error {
	db, done, err := s.open(path, nil)
	if err != nil {
		return err
	}
	err = s.writeAll(db)
	if cerr := done(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	opts := lvlkv.NewOptions()
	defer opts.Destroy()
	opts.SetInfoLog(s.log)
	if err := lvlkv.DestroyDB(opts, path); err != nil {
		return errors.Wrap(err, "destroy failed")
	}

	opts.SetCreateIfMissing(false)
	if _, err := lvlkv.Open(opts, path); !errors.Is(err, lvlkv.ErrNotFound) {
		return errors.Errorf("open after destroy = %v, want NotFound", err)
	}
	return nil
}

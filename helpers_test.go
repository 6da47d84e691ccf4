package lvlkv

// helpers_test.go implements shared fixtures for the package tests.

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aalhour/lvlkv/internal/logging"
)

// usageLog records violations instead of panicking.
type usageLog struct {
	mu   sync.Mutex
	errs []*UsageError
}

// recordUsage installs a recording handler for the rest of the test.
func recordUsage(t *testing.T) *usageLog {
	t.Helper()
	u := &usageLog{}
	prev := SetUsageHandler(func(e *UsageError) {
		u.mu.Lock()
		u.errs = append(u.errs, e)
		u.mu.Unlock()
	})
	t.Cleanup(func() { SetUsageHandler(prev) })
	return u
}

func (u *usageLog) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.errs)
}

func (u *usageLog) last() *UsageError {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.errs) == 0 {
		return nil
	}
	return u.errs[len(u.errs)-1]
}

// expect fails unless exactly n violations were recorded and the last one
// mentions reason.
func (u *usageLog) expect(t *testing.T, n int, reason string) {
	t.Helper()
	if got := u.count(); got != n {
		t.Fatalf("violations = %d, want %d", got, n)
	}
	if n == 0 {
		return
	}
	if last := u.last(); !strings.Contains(last.Reason, reason) {
		t.Fatalf("last violation %q does not mention %q", last.Error(), reason)
	}
}

// expectPanic fails unless fn panics with a *UsageError.
func expectPanic(t *testing.T, fn func()) *UsageError {
	t.Helper()
	var got *UsageError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			e, ok := r.(*UsageError)
			if !ok {
				panic(r)
			}
			got = e
		}()
		fn()
	}()
	if got == nil {
		t.Fatal("expected a usage violation panic")
	}
	return got
}

// newMemOptions returns create-if-missing options over a fresh in-memory Env.
func newMemOptions(t *testing.T) *Options {
	t.Helper()
	env := NewMemEnv()
	opts := NewOptions()
	opts.SetEnv(env)
	opts.SetCreateIfMissing(true)
	opts.SetInfoLog(logging.Discard)
	t.Cleanup(func() {
		if !opts.released.Load() {
			opts.Destroy()
		}
		if !env.released.Load() {
			_ = env.Destroy()
		}
	})
	return opts
}

// newOSOptions returns create-if-missing options over OS directories and a
// database path inside the test's temporary directory.
func newOSOptions(t *testing.T) (*Options, string) {
	t.Helper()
	opts := NewOptions()
	opts.SetCreateIfMissing(true)
	opts.SetInfoLog(logging.Discard)
	t.Cleanup(func() {
		if !opts.released.Load() {
			opts.Destroy()
		}
	})
	return opts, filepath.Join(t.TempDir(), "db")
}

// openDB opens path with opts and closes it at the end of the test.
func openDB(t *testing.T, opts *Options, path string) *DB {
	t.Helper()
	db, err := Open(opts, path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	t.Cleanup(func() {
		if !db.released.Load() {
			_ = db.Close()
		}
	})
	return db
}

// openMemDB opens a fresh in-memory database.
func openMemDB(t *testing.T) *DB {
	t.Helper()
	return openDB(t, newMemOptions(t), "db")
}

func mustPut(t *testing.T, db *DB, key, value string) {
	t.Helper()
	if err := db.Put(nil, []byte(key), []byte(value)); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func mustGet(t *testing.T, db *DB, ro *ReadOptions, key string) string {
	t.Helper()
	v, err := db.Get(ro, []byte(key))
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return string(v)
}

// scan returns every key of it in forward order.
func scan(t *testing.T, it *Iterator) []string {
	t.Helper()
	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
	return keys
}

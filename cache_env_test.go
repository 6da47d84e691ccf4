package lvlkv

// cache_env_test.go implements tests for shared Cache and Env handles.

import (
	"errors"
	"testing"

	"github.com/aalhour/lvlkv/internal/logging"
	"github.com/aalhour/lvlkv/vfs"
)

// TestCache_Contract_InUseCannotBeDestroyed verifies reference counting of
// a cache shared by an Options bundle and the database opened with it.
func TestCache_Contract_InUseCannotBeDestroyed(t *testing.T) {
	cache := NewLRUCache(1 << 20)
	opts := newMemOptions(t)
	opts.SetCache(cache)
	if opts.Cache() != cache || cache.Capacity() != 1<<20 {
		t.Fatal("cache not attached")
	}
	db := openDB(t, opts, "db")
	mustPut(t, db, "k", "v")

	if o, d := cache.ref.refs(); o != 1 || d != 1 {
		t.Fatalf("refs = %d options, %d databases; want 1, 1", o, d)
	}

	u := recordUsage(t)
	if err := cache.Destroy(); !errors.Is(err, ErrUsage) {
		t.Fatalf("Destroy of in-use cache = %v", err)
	}
	u.expect(t, 1, "in use by 1 open database")

	// Contract: the refused destroy leaves the cache alive.
	if cache.Capacity() != 1<<20 || u.count() != 1 {
		t.Fatal("cache unusable after refused destroy")
	}
	if got := mustGet(t, db, nil, "k"); got != "v" {
		t.Fatalf("Get = %q", got)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := cache.Destroy(); err != nil {
		t.Fatalf("Destroy after close = %v", err)
	}
	// Contract: the bundle still references the cache, so it is not freed yet.
	if cache.ref.isFreed() {
		t.Fatal("cache freed while an Options bundle holds it")
	}
	opts.Destroy()
	if !cache.ref.isFreed() {
		t.Fatal("cache not freed after the last reference dropped")
	}
}

// TestCache_Contract_DestroyedCannotBeAttached verifies that destroyed caches
// are rejected both by SetCache and by Open.
func TestCache_Contract_DestroyedCannotBeAttached(t *testing.T) {
	u := recordUsage(t)

	dead := NewLRUCache(1 << 10)
	if err := dead.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	opts := newMemOptions(t)
	opts.SetCache(dead)
	u.expect(t, 1, "Cache already destroyed")
	if opts.Cache() != nil {
		t.Fatal("destroyed cache attached")
	}

	// Destroyed while only a bundle held it.
	held := NewLRUCache(1 << 10)
	opts.SetCache(held)
	if err := held.Destroy(); err != nil {
		t.Fatalf("Destroy of bundle-held cache = %v", err)
	}
	if _, err := Open(opts, "db"); !errors.Is(err, ErrUsage) {
		t.Fatalf("Open with destroyed cache = %v", err)
	}
	u.expect(t, 2, "destroyed Cache")
	if opts.Frozen() {
		t.Fatal("failed open froze options")
	}
}

// TestCache_Replace verifies that swapping caches moves the reference.
func TestCache_Replace(t *testing.T) {
	a, b := NewLRUCache(1), NewLRUCache(2)
	opts := NewOptions()
	opts.SetCache(a)
	opts.SetCache(b)
	if o, _ := a.ref.refs(); o != 0 {
		t.Fatalf("replaced cache still has %d option refs", o)
	}
	if err := a.Destroy(); err != nil {
		t.Fatalf("Destroy(a) = %v", err)
	}
	if !a.ref.isFreed() {
		t.Fatal("unreferenced cache not freed on destroy")
	}
	opts.SetCache(nil)
	opts.Destroy()
	if err := b.Destroy(); err != nil {
		t.Fatalf("Destroy(b) = %v", err)
	}
}

// TestCache_SharedAcrossDatabases verifies that every open database holds
// its own reference.
func TestCache_SharedAcrossDatabases(t *testing.T) {
	cache := NewLRUCache(4 << 20)
	defer func() { _ = cache.Destroy() }()

	first := newMemOptions(t)
	first.SetCache(cache)
	second := newMemOptions(t)
	second.SetCache(cache)

	a := openDB(t, first, "a")
	b := openDB(t, second, "b")
	if o, d := cache.ref.refs(); o != 2 || d != 2 {
		t.Fatalf("refs = %d, %d; want 2, 2", o, d)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, d := cache.ref.refs(); d != 0 {
		t.Fatalf("db refs after close = %d", d)
	}
}

// TestEnv_Contract_InUseCannotBeDestroyed mirrors the cache contract for Env
// and checks that freeing a memory Env drops its databases.
func TestEnv_Contract_InUseCannotBeDestroyed(t *testing.T) {
	mem := vfs.NewMem()
	env := NewEnv(mem)
	opts := NewOptions()
	opts.SetEnv(env)
	opts.SetCreateIfMissing(true)
	opts.SetInfoLog(logging.Discard)

	db, err := Open(opts, "db")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	mustPut(t, db, "k", "v")

	u := recordUsage(t)
	if err := env.Destroy(); !errors.Is(err, ErrUsage) {
		t.Fatalf("Destroy of in-use env = %v", err)
	}
	u.expect(t, 1, "Env in use by 1 open database")

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if mem.Len() != 1 {
		t.Fatalf("memory env holds %d databases, want 1", mem.Len())
	}
	opts.SetEnv(nil) // frozen: recorded, not applied
	u.expect(t, 2, "options already used")

	if err := env.Destroy(); err != nil {
		t.Fatalf("Destroy after close = %v", err)
	}
	if mem.Len() != 1 {
		t.Fatal("env freed while an Options bundle holds it")
	}
	opts.Destroy()
	if mem.Len() != 0 {
		t.Fatal("freed memory env kept its databases")
	}
	u.expect(t, 2, "")
}

// TestEnv_DefaultIsProcessWide verifies that unset Env means OS directories.
func TestEnv_DefaultIsProcessWide(t *testing.T) {
	opts, path := newOSOptions(t)
	db := openDB(t, opts, path)
	mustPut(t, db, "k", "v")
	if !processEnv.fs.HasDatabase(path) {
		t.Fatal("database not on disk")
	}

	env := NewDefaultEnv()
	defer func() { _ = env.Destroy() }()
	if env.fs.Namespace() != processEnv.fs.Namespace() {
		t.Fatal("default envs must share a namespace")
	}
}

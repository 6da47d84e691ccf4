package lvlkv

// handle.go implements the state shared by every explicitly released handle.

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// handle is embedded by every handle type. Release is at-most-once.
type handle struct {
	kind     string
	id       uuid.UUID
	released atomic.Bool
}

func (h *handle) init(kind string) {
	h.kind = kind
	h.id = uuid.New()
}

// String returns the handle kind and a short form of its identity.
func (h *handle) String() string {
	return h.kind + "(" + h.id.String()[:8] + ")"
}

// check reports a violation if the handle has been released.
func (h *handle) check(op string) *UsageError {
	if h.released.Load() {
		return violation(h.String(), op, h.kind+" already released")
	}
	return nil
}

// release marks the handle released. A second release is a violation.
func (h *handle) release(op string) *UsageError {
	if !h.released.CompareAndSwap(false, true) {
		return violation(h.String(), op, h.kind+" already released")
	}
	return nil
}

// sharedRef counts the holders of a shared resource (Cache, Env).
//
// Options bundles that reference the resource hold option refs; open
// databases hold db refs. The resource may be destroyed only while no
// database uses it, and is freed once it is destroyed and the last
// reference is gone.
type sharedRef struct {
	mu        sync.Mutex
	optRefs   int
	dbRefs    int
	destroyed bool
	freed     bool
	free      func()
}

// attach adds an option ref. It fails if the resource is destroyed.
func (r *sharedRef) attach() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return false
	}
	r.optRefs++
	return true
}

func (r *sharedRef) detach() {
	r.mu.Lock()
	r.optRefs--
	free := r.freeLocked()
	r.mu.Unlock()
	free()
}

// acquireDB adds a db ref. It fails if the resource is destroyed.
func (r *sharedRef) acquireDB() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return false
	}
	r.dbRefs++
	return true
}

func (r *sharedRef) releaseDB() {
	r.mu.Lock()
	r.dbRefs--
	free := r.freeLocked()
	r.mu.Unlock()
	free()
}

// destroy marks the resource destroyed. h is the owning handle.
func (r *sharedRef) destroy(h *handle, op string) *UsageError {
	r.mu.Lock()
	switch {
	case r.destroyed:
		r.mu.Unlock()
		return violation(h.String(), op, h.kind+" already destroyed")
	case r.dbRefs > 0:
		n := r.dbRefs
		r.mu.Unlock()
		return violation(h.String(), op, h.kind+" in use by "+plural(n, "open database"))
	}
	r.destroyed = true
	h.released.Store(true)
	free := r.freeLocked()
	r.mu.Unlock()
	free()
	return nil
}

func (r *sharedRef) refs() (opt, db int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.optRefs, r.dbRefs
}

func (r *sharedRef) isFreed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freed
}

// freeLocked returns the function to run after unlocking.
func (r *sharedRef) freeLocked() func() {
	if !r.destroyed || r.freed || r.optRefs > 0 || r.dbRefs > 0 {
		return func() {}
	}
	r.freed = true
	if r.free == nil {
		return func() {}
	}
	return r.free
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

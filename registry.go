package lvlkv

// registry.go tracks which database paths are open in this process.

import "sync"

// pathRegistry enforces one live DB per path. Keys combine the Env
// namespace with the provider's canonical path.
type pathRegistry struct {
	mu   sync.Mutex
	open map[string]struct{}
}

var openPaths = &pathRegistry{open: make(map[string]struct{})}

func registryKey(e *Env, path string) string {
	return e.fs.Namespace() + "|" + e.fs.Key(path)
}

// claim marks key as in use. It returns false if it already is.
func (r *pathRegistry) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[key]; ok {
		return false
	}
	r.open[key] = struct{}{}
	return true
}

func (r *pathRegistry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, key)
}

func (r *pathRegistry) isOpen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.open[key]
	return ok
}

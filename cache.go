package lvlkv

// cache.go implements the shared block cache handle.

// Cache is an LRU block cache shared by reference across Options bundles.
//
// Each database opened with a Cache gets its own block cache of the Cache's
// capacity: the handle shares configuration and lifetime, not memory. N
// databases on one Cache may hold up to N times its capacity. The handle may be destroyed only while no open database uses
// it; destroying it while only Options bundles hold it defers the free
// until the last bundle lets go.
type Cache struct {
	handle
	capacity int
	ref      sharedRef
}

// NewLRUCache creates a cache handle of capacity bytes. A negative capacity
// is rejected when a database is opened with it.
func NewLRUCache(capacity int) *Cache {
	c := &Cache{capacity: capacity}
	c.init("Cache")
	return c
}

// Capacity returns the capacity in bytes.
func (c *Cache) Capacity() int {
	if uerr := c.check("Capacity"); uerr != nil {
		return 0
	}
	return c.capacity
}

// Destroy releases the handle. Destroying a cache that an open database
// uses is a usage violation and leaves the cache alive.
func (c *Cache) Destroy() error {
	if uerr := c.ref.destroy(&c.handle, "Destroy"); uerr != nil {
		return uerr
	}
	return nil
}

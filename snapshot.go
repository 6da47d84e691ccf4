package lvlkv

// snapshot.go implements the point-in-time snapshot handle.

import "github.com/aalhour/lvlkv/internal/engine"

// Snapshot is an immutable point-in-time view of one database. Bind it to
// ReadOptions to read at that point. It is created by DB.NewSnapshot and
// must be released with DB.ReleaseSnapshot on the same database before
// that database closes. A Snapshot may be shared read-only across
// goroutines.
type Snapshot struct {
	handle
	db   *DB
	snap *engine.Snapshot
}

// ID returns the snapshot's identity.
func (s *Snapshot) ID() string {
	return s.id.String()
}

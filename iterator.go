package lvlkv

// iterator.go implements the Iterator handle.
//
// An iterator starts unpositioned. Seeking positions it on an entry or
// exhausts it; Next and Prev step while positioned. Key, Value, Next and
// Prev require a valid position. The view is fixed when the iterator is
// created, or at the bound snapshot's point.

import (
	"sync/atomic"

	"github.com/aalhour/lvlkv/internal/engine"
)

type iterState int

const (
	iterUnpositioned iterState = iota
	iterPositioned
	iterExhausted
)

// Iterator is an ordered cursor over one database. It is single-owner and
// must be closed before its database closes.
type Iterator struct {
	handle
	db       *DB
	it       engine.Iterator
	state    iterState
	orphaned atomic.Bool
}

// enter holds the owning database's shared lock for the duration of one
// call, so Close cannot free the engine iterator underneath it. On success
// the caller must call it.db.mu.RUnlock.
func (it *Iterator) enter(op string) *UsageError {
	it.db.mu.RLock()
	switch {
	case it.orphaned.Load():
		it.db.mu.RUnlock()
		return violation(it.String(), op, "owning database closed")
	case it.released.Load():
		it.db.mu.RUnlock()
		return violation(it.String(), op, "Iterator already closed")
	}
	return nil
}

// positioned reports a violation unless the iterator is valid.
func (it *Iterator) positioned(op string) *UsageError {
	if it.state != iterPositioned {
		return violation(it.String(), op, "iterator not positioned on an entry")
	}
	return nil
}

func (it *Iterator) moved(ok bool) {
	if ok {
		it.state = iterPositioned
	} else {
		it.state = iterExhausted
	}
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool {
	if uerr := it.enter("Valid"); uerr != nil {
		return false
	}
	defer it.db.mu.RUnlock()
	return it.state == iterPositioned
}

// SeekToFirst positions the iterator at the first key.
func (it *Iterator) SeekToFirst() {
	if uerr := it.enter("SeekToFirst"); uerr != nil {
		return
	}
	defer it.db.mu.RUnlock()
	it.db.stats.tick(TickerIteratorSeek, 1)
	it.moved(it.it.First())
}

// SeekToLast positions the iterator at the last key.
func (it *Iterator) SeekToLast() {
	if uerr := it.enter("SeekToLast"); uerr != nil {
		return
	}
	defer it.db.mu.RUnlock()
	it.db.stats.tick(TickerIteratorSeek, 1)
	it.moved(it.it.Last())
}

// Seek positions the iterator at the first key >= target.
func (it *Iterator) Seek(target []byte) {
	if uerr := it.enter("Seek"); uerr != nil {
		return
	}
	defer it.db.mu.RUnlock()
	it.db.stats.tick(TickerIteratorSeek, 1)
	it.moved(it.it.Seek(target))
}

// Next moves to the following key. The iterator must be valid.
func (it *Iterator) Next() {
	if uerr := it.enter("Next"); uerr != nil {
		return
	}
	defer it.db.mu.RUnlock()
	if uerr := it.positioned("Next"); uerr != nil {
		return
	}
	it.db.stats.tick(TickerIteratorNext, 1)
	it.moved(it.it.Next())
}

// Prev moves to the preceding key. The iterator must be valid.
func (it *Iterator) Prev() {
	if uerr := it.enter("Prev"); uerr != nil {
		return
	}
	defer it.db.mu.RUnlock()
	if uerr := it.positioned("Prev"); uerr != nil {
		return
	}
	it.db.stats.tick(TickerIteratorPrev, 1)
	it.moved(it.it.Prev())
}

// Key returns a copy of the current key. The iterator must be valid.
func (it *Iterator) Key() []byte {
	if uerr := it.enter("Key"); uerr != nil {
		return nil
	}
	defer it.db.mu.RUnlock()
	if uerr := it.positioned("Key"); uerr != nil {
		return nil
	}
	return append([]byte{}, it.it.Key()...)
}

// Value returns a copy of the current value. The iterator must be valid.
func (it *Iterator) Value() []byte {
	if uerr := it.enter("Value"); uerr != nil {
		return nil
	}
	defer it.db.mu.RUnlock()
	if uerr := it.positioned("Value"); uerr != nil {
		return nil
	}
	return append([]byte{}, it.it.Value()...)
}

// Error returns the fault, if any, that ended iteration early.
func (it *Iterator) Error() error {
	if uerr := it.enter("Error"); uerr != nil {
		return uerr
	}
	defer it.db.mu.RUnlock()
	return wrapEngine("Iterator", it.it.Error())
}

// Close releases the iterator.
func (it *Iterator) Close() error {
	if uerr := it.enter("Close"); uerr != nil {
		return uerr
	}
	defer it.db.mu.RUnlock()
	if uerr := it.release("Close"); uerr != nil {
		return uerr
	}
	it.db.dropIterator(it)
	it.it.Release()
	it.db.stats.tick(TickerIteratorsClosed, 1)
	return nil
}

// orphan force-releases the iterator. Called by DB.Close under the
// exclusive lock.
func (it *Iterator) orphan() {
	it.orphaned.Store(true)
	it.released.Store(true)
	it.it.Release()
}

package lvlkv

// write_batch.go implements the WriteBatch handle.
//
// A batch records Put and Delete entries in order and is applied
// atomically by DB.Write: either every entry becomes visible or none does.
// Later entries for a key supersede earlier ones. A batch belongs to no
// database and may be applied to several, cleared and reused.

import (
	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv/internal/engine"
)

// BatchHandler receives the entries of a batch in insertion order.
type BatchHandler interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// WriteBatch is an ordered list of pending mutations. It is single-owner.
type WriteBatch struct {
	handle
	b engine.Batch
}

// NewWriteBatch returns an empty batch.
func NewWriteBatch() *WriteBatch {
	wb := &WriteBatch{}
	wb.init("WriteBatch")
	return wb
}

// Put appends a put of value under key. Both are copied.
func (wb *WriteBatch) Put(key, value []byte) {
	if uerr := wb.check("Put"); uerr != nil {
		return
	}
	wb.b.Put(key, value)
}

// Delete appends a deletion of key. The key is copied.
func (wb *WriteBatch) Delete(key []byte) {
	if uerr := wb.check("Delete"); uerr != nil {
		return
	}
	wb.b.Delete(key)
}

// Clear removes every entry.
func (wb *WriteBatch) Clear() {
	if uerr := wb.check("Clear"); uerr != nil {
		return
	}
	wb.b.Reset()
}

// Count returns the number of entries.
func (wb *WriteBatch) Count() int {
	if uerr := wb.check("Count"); uerr != nil {
		return 0
	}
	return wb.b.Len()
}

// Iterate replays the entries in insertion order into h.
func (wb *WriteBatch) Iterate(h BatchHandler) error {
	if uerr := wb.check("Iterate"); uerr != nil {
		return uerr
	}
	if h == nil {
		return invalidArgument("Iterate", "nil handler")
	}
	if err := wb.b.Replay(h); err != nil {
		return newError(CodeCorruption, "Iterate", errors.Wrap(err, "replay"))
	}
	return nil
}

// Destroy releases the batch.
func (wb *WriteBatch) Destroy() {
	if uerr := wb.release("Destroy"); uerr != nil {
		return
	}
	wb.b.Reset()
}

// size returns the encoded byte length of the entries.
func (wb *WriteBatch) size() int {
	return len(wb.b.Dump())
}

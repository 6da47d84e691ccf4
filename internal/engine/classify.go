// classify.go maps engine failures onto the layer's status kinds.

package engine

import (
	"os"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// Kind is the class of an engine failure.
type Kind int

const (
	KindOK Kind = iota
	KindNotFound
	KindCorruption
	KindAlreadyExists
	KindIO
	KindInvalidArgument
	KindClosed
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not found"
	case KindCorruption:
		return "corruption"
	case KindAlreadyExists:
		return "already exists"
	case KindIO:
		return "io error"
	case KindInvalidArgument:
		return "invalid argument"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Classify returns the kind of err. Anything unrecognised is an I/O fault.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	if isCorrupted(err) {
		return KindCorruption
	}
	switch {
	case errors.Is(err, leveldb.ErrNotFound), errors.Is(err, ErrMissing):
		return KindNotFound
	case errors.Is(err, ErrExists):
		return KindAlreadyExists
	case errors.Is(err, leveldb.ErrClosed),
		errors.Is(err, leveldb.ErrSnapshotReleased),
		errors.Is(err, leveldb.ErrIterReleased):
		return KindClosed
	case os.IsNotExist(errors.Cause(err)):
		return KindNotFound
	}
	return KindIO
}

// isCorrupted walks the wrap chain; lerrors.IsCorrupted only inspects the
// error it is handed.
func isCorrupted(err error) bool {
	for err != nil {
		if lerrors.IsCorrupted(err) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

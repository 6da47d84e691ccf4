package lvlkv

// errors.go defines the status taxonomy returned by database operations.
//
// Every failure carries one Code. Engine faults surface as *Error, which
// matches both its Code's sentinel and the underlying engine cause:
//
//	v, err := db.Get(nil, key)
//	if errors.Is(err, lvlkv.ErrNotFound) { ... }
//	if lvlkv.CodeOf(err) == lvlkv.CodeCorruption { ... }

import (
	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv/internal/engine"
)

// Code classifies the outcome of an operation.
type Code int

const (
	// CodeOK means the operation succeeded.
	CodeOK Code = iota
	// CodeNotFound means the key or database does not exist.
	CodeNotFound
	// CodeCorruption means stored data failed an integrity check.
	CodeCorruption
	// CodeInvalidArgument means the caller passed something the engine rejects.
	CodeInvalidArgument
	// CodeIOError means the storage layer failed.
	CodeIOError
	// CodeAlreadyExists means error-if-exists was set and a database is present.
	CodeAlreadyExists
	// CodeUsage means a handle was used outside its lifecycle.
	CodeUsage
)

// String returns the name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotFound:
		return "NotFound"
	case CodeCorruption:
		return "Corruption"
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodeIOError:
		return "IOError"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeUsage:
		return "UsageViolation"
	default:
		return "Unknown"
	}
}

var (
	// ErrNotFound is returned when a key or database does not exist.
	ErrNotFound = errors.New("lvlkv: not found")

	// ErrCorruption is matched by errors caused by corrupted data.
	ErrCorruption = errors.New("lvlkv: corruption")

	// ErrInvalidArgument is matched by errors caused by rejected arguments.
	ErrInvalidArgument = errors.New("lvlkv: invalid argument")

	// ErrIOError is matched by errors caused by storage failures.
	ErrIOError = errors.New("lvlkv: io error")

	// ErrAlreadyExists is matched when a database exists and error-if-exists is set.
	ErrAlreadyExists = errors.New("lvlkv: already exists")

	// ErrUsage is matched by every *UsageError.
	ErrUsage = errors.New("lvlkv: usage violation")
)

func sentinel(c Code) error {
	switch c {
	case CodeNotFound:
		return ErrNotFound
	case CodeCorruption:
		return ErrCorruption
	case CodeInvalidArgument:
		return ErrInvalidArgument
	case CodeAlreadyExists:
		return ErrAlreadyExists
	case CodeUsage:
		return ErrUsage
	default:
		return ErrIOError
	}
}

// Error is a classified failure of an operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "lvlkv: " + e.Op + ": " + e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the Code's sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{sentinel(e.Code)}
	}
	return []error{sentinel(e.Code), e.Err}
}

func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func invalidArgument(op, format string, args ...any) *Error {
	return newError(CodeInvalidArgument, op, errors.Errorf(format, args...))
}

// wrapEngine classifies an engine error. It returns nil for nil. An engine
// object that was already released, such as a snapshot freed by a racing
// ReleaseSnapshot, is a usage violation.
func wrapEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	var code Code
	switch engine.Classify(err) {
	case engine.KindClosed:
		return violation("engine", op, err.Error())
	case engine.KindNotFound:
		code = CodeNotFound
	case engine.KindCorruption:
		code = CodeCorruption
	case engine.KindAlreadyExists:
		code = CodeAlreadyExists
	case engine.KindInvalidArgument:
		code = CodeInvalidArgument
	default:
		code = CodeIOError
	}
	return newError(code, op, err)
}

// CodeOf returns the Code carried by err. Unclassified errors are IOError.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var u *UsageError
	if errors.As(err, &u) {
		return CodeUsage
	}
	for _, c := range []Code{CodeNotFound, CodeCorruption, CodeInvalidArgument, CodeAlreadyExists, CodeUsage} {
		if errors.Is(err, sentinel(c)) {
			return c
		}
	}
	return CodeIOError
}

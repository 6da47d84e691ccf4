package lvlkv

// usage.go implements the policy for lifecycle violations.
//
// Using a handle after its release, releasing it twice, destroying a shared
// resource that an open database still uses, or mixing handles of different
// databases is a programming error, not a runtime fault. Violations are sent
// to a process-wide handler. The default handler panics, so the mistake
// surfaces at its call site. A handler that returns lets the violating call
// proceed as a no-op: calls that return an error return the *UsageError,
// other calls return zero values.

import (
	"fmt"
	"sync/atomic"

	"github.com/aalhour/lvlkv/internal/logging"
)

// UsageError describes a lifecycle violation.
type UsageError struct {
	// Handle names the misused handle, e.g. "Iterator(1f2e3d4c)".
	Handle string
	// Op is the method that was called.
	Op string
	// Reason says what was wrong.
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("lvlkv: usage violation: %s.%s: %s", e.Handle, e.Op, e.Reason)
}

// Is reports whether target is ErrUsage.
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// UsageHandler receives every usage violation.
type UsageHandler func(*UsageError)

// PanicOnUsage is the default handler. It panics with the *UsageError.
func PanicOnUsage(e *UsageError) {
	panic(e)
}

// LogUsage returns a handler that logs violations at error level and lets
// the violating call continue as a no-op.
func LogUsage(l Logger) UsageHandler {
	l = logging.OrDefault(l)
	return func(e *UsageError) {
		l.Errorf("%s%s", logging.NSHandle, e.Error())
	}
}

var usageHandler atomic.Pointer[UsageHandler]

// SetUsageHandler installs h and returns the previous handler.
// A nil h restores PanicOnUsage.
func SetUsageHandler(h UsageHandler) UsageHandler {
	if h == nil {
		h = PanicOnUsage
	}
	prev := usageHandler.Swap(&h)
	if prev == nil {
		return PanicOnUsage
	}
	return *prev
}

// violation reports a usage violation and returns it for the caller to
// hand back when the handler returns.
func violation(handle, op, reason string) *UsageError {
	e := &UsageError{Handle: handle, Op: op, Reason: reason}
	h := PanicOnUsage
	if p := usageHandler.Load(); p != nil {
		h = *p
	}
	h(e)
	return e
}

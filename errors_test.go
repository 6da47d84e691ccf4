package lvlkv

// errors_test.go implements tests for the status taxonomy and usage policy.

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/aalhour/lvlkv/internal/engine"
	"github.com/aalhour/lvlkv/internal/logging"
)

func TestCode_String(t *testing.T) {
	names := map[Code]string{
		CodeOK:              "OK",
		CodeNotFound:        "NotFound",
		CodeCorruption:      "Corruption",
		CodeInvalidArgument: "InvalidArgument",
		CodeIOError:         "IOError",
		CodeAlreadyExists:   "AlreadyExists",
		CodeUsage:           "UsageViolation",
		Code(99):            "Unknown",
	}
	for c, want := range names {
		if c.String() != want {
			t.Errorf("Code(%d).String() = %q, want %q", int(c), c.String(), want)
		}
	}
}

// TestWrapEngine_Contract_Classification verifies how engine faults map onto
// codes, and that every wrapped error keeps its cause.
func TestWrapEngine_Contract_Classification(t *testing.T) {
	cause := errors.New("disk on fire")
	tests := []struct {
		err   error
		code  Code
		match error
	}{
		{leveldb.ErrNotFound, CodeNotFound, ErrNotFound},
		{fmt.Errorf("open: %w", engine.ErrMissing), CodeNotFound, ErrNotFound},
		{engine.ErrExists, CodeAlreadyExists, ErrAlreadyExists},
		{lerrors.NewErrCorrupted(storage.FileDesc{}, cause), CodeCorruption, ErrCorruption},
		{fmt.Errorf("read: %w", lerrors.NewErrCorrupted(storage.FileDesc{}, cause)), CodeCorruption, ErrCorruption},
		{os.ErrPermission, CodeIOError, ErrIOError},
		{cause, CodeIOError, ErrIOError},
	}
	for _, tt := range tests {
		err := wrapEngine("Op", tt.err)
		if CodeOf(err) != tt.code {
			t.Errorf("%v: code = %v, want %v", tt.err, CodeOf(err), tt.code)
		}
		if !errors.Is(err, tt.match) {
			t.Errorf("%v: does not match %v", tt.err, tt.match)
		}
		if !errors.Is(err, tt.err) {
			t.Errorf("%v: cause lost", tt.err)
		}
	}
	if wrapEngine("Op", nil) != nil {
		t.Fatal("wrapEngine(nil) != nil")
	}
}

// TestWrapEngine_Contract_ReleasedIsViolation verifies that an engine object
// used after its release is reported as a usage violation, not a storage
// fault.
func TestWrapEngine_Contract_ReleasedIsViolation(t *testing.T) {
	for _, cause := range []error{leveldb.ErrClosed, leveldb.ErrSnapshotReleased, leveldb.ErrIterReleased} {
		u := recordUsage(t)
		err := wrapEngine("Get", cause)
		if !errors.Is(err, ErrUsage) || CodeOf(err) != CodeUsage {
			t.Errorf("%v: got %v, want a usage violation", cause, err)
		}
		if u.count() != 1 {
			t.Errorf("%v: handler saw %d violations, want 1", cause, u.count())
		}
		if last := u.last(); last == nil || last.Op != "Get" || !strings.Contains(last.Reason, cause.Error()) {
			t.Errorf("%v: reported %v", cause, last)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != CodeOK {
		t.Fatal("CodeOf(nil)")
	}
	if CodeOf(ErrNotFound) != CodeNotFound || CodeOf(fmt.Errorf("x: %w", ErrCorruption)) != CodeCorruption {
		t.Fatal("sentinels not classified")
	}
	if CodeOf(&UsageError{}) != CodeUsage || CodeOf(errors.New("other")) != CodeIOError {
		t.Fatal("fallback classification")
	}
}

func TestError_Message(t *testing.T) {
	err := newError(CodeIOError, "Put", errors.New("disk full"))
	if got := err.Error(); got != "lvlkv: Put: IOError: disk full" {
		t.Fatalf("Error() = %q", got)
	}
	bare := newError(CodeNotFound, "Get", nil)
	if got := bare.Error(); got != "lvlkv: Get: NotFound" || !errors.Is(bare, ErrNotFound) {
		t.Fatalf("bare error = %q", got)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("IOError matches ErrNotFound")
	}
}

func TestSetUsageHandler_ReturnsPrevious(t *testing.T) {
	var calls int
	mine := func(*UsageError) { calls++ }
	prev := SetUsageHandler(mine)
	defer SetUsageHandler(prev)

	wo := NewWriteOptions()
	wo.Destroy()
	wo.Destroy()
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}

	// nil restores the panicking default.
	got := SetUsageHandler(nil)
	if got == nil {
		t.Fatal("previous handler not returned")
	}
	expectPanic(t, func() { wo.Destroy() })
	SetUsageHandler(mine)
}

func TestLogUsage(t *testing.T) {
	var buf bytes.Buffer
	prev := SetUsageHandler(LogUsage(logging.NewLogger(&buf, logging.LevelError)))
	defer SetUsageHandler(prev)

	ro := NewReadOptions()
	ro.Destroy()
	ro.Destroy()

	out := buf.String()
	if !strings.Contains(out, "ERROR [handle] lvlkv: usage violation: ReadOptions(") ||
		!strings.Contains(out, ".Destroy: ReadOptions already released") {
		t.Fatalf("log = %q", out)
	}
}

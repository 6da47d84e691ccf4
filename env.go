package lvlkv

// env.go implements the shared storage environment handle.

import (
	"io"

	"github.com/aalhour/lvlkv/vfs"
)

// Env selects where databases live. Like Cache, it is shared by reference
// across Options bundles and may be destroyed only while no open database
// uses it.
type Env struct {
	handle
	fs  vfs.FS
	ref sharedRef
}

// NewDefaultEnv returns an Env over OS directories.
func NewDefaultEnv() *Env {
	return NewEnv(vfs.Default())
}

// NewMemEnv returns an Env whose databases live in process memory. They
// are dropped when the Env is freed.
func NewMemEnv() *Env {
	return NewEnv(vfs.NewMem())
}

// NewEnv returns an Env over fs. If fs implements io.Closer it is closed
// when the Env is freed.
func NewEnv(fs vfs.FS) *Env {
	e := &Env{fs: fs}
	e.init("Env")
	e.ref.free = func() {
		if c, ok := fs.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return e
}

// Destroy releases the handle. Destroying an Env that an open database
// uses is a usage violation and leaves the Env alive.
func (e *Env) Destroy() error {
	if uerr := e.ref.destroy(&e.handle, "Destroy"); uerr != nil {
		return uerr
	}
	return nil
}

// processEnv backs Options that never had an Env set. It is never freed.
var processEnv = NewDefaultEnv()

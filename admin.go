package lvlkv

// admin.go implements the administrative operations on closed databases.

import (
	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv/internal/engine"
	"github.com/aalhour/lvlkv/internal/logging"
)

// claimClosed validates opts and reserves path so no Open can race the
// administrative operation. The caller must call the returned function.
func claimClosed(op string, opts *Options, path string) (*openConfig, func(), error) {
	if path == "" {
		return nil, nil, invalidArgument(op, "empty path")
	}
	cfg, err := opts.capture(op)
	if err != nil {
		return nil, nil, err
	}
	key := registryKey(cfg.env, path)
	if !openPaths.claim(key) {
		cfg.release()
		return nil, nil, violation("DB", op, path+" is open")
	}
	return cfg, func() {
		openPaths.release(key)
		cfg.release()
	}, nil
}

// DestroyDB removes the database at path and everything the engine stored
// with it. Destroying a missing database succeeds. Calling it on an open
// database is a usage violation.
func DestroyDB(opts *Options, path string) error {
	const op = "DestroyDB"
	cfg, done, err := claimClosed(op, opts, path)
	if err != nil {
		return err
	}
	defer done()

	if err := cfg.env.fs.Remove(path); err != nil {
		return wrapEngine(op, err)
	}
	cfg.log.Infof("%sdestroyed %s", logging.NSAdmin, path)
	return nil
}

// RepairDB rebuilds the database at path from whatever table files are
// readable, discarding data it cannot recover. Repairing a missing
// directory returns NotFound. Calling it on an open database is a usage
// violation.
func RepairDB(opts *Options, path string) error {
	const op = "RepairDB"
	cfg, done, err := claimClosed(op, opts, path)
	if err != nil {
		return err
	}
	defer done()

	fs := cfg.env.fs
	if !fs.Exists(path) {
		return newError(CodeNotFound, op, errors.Errorf("%s does not exist", path))
	}
	stor, err := fs.Open(path)
	if err != nil {
		return wrapEngine(op, err)
	}
	if err := engine.Recover(stor, cfg.settings); err != nil {
		cfg.log.Errorf("%srepair %s: %v", logging.NSAdmin, path, err)
		return wrapEngine(op, err)
	}
	cfg.log.Infof("%srepaired %s", logging.NSAdmin, path)
	return nil
}

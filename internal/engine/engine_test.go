package engine

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/aalhour/lvlkv/internal/logging"
)

// nopClose keeps a mem storage alive across engine opens.
type nopClose struct{ storage.Storage }

func (nopClose) Close() error { return nil }

type recordingLogger struct {
	logging.DiscardLogger
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func defaults() Settings {
	return Settings{
		CreateIfMissing:      true,
		WriteBufferSize:      4 << 20,
		MaxOpenFiles:         1000,
		BlockSize:            4 << 10,
		BlockRestartInterval: 16,
		Snappy:               true,
	}
}

func TestOpenReadWrite(t *testing.T) {
	db, err := Open(storage.NewMemStorage(), defaults())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v"), false))
	v, err := db.Get([]byte("k"), ReadSettings{FillCache: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, db.Delete([]byte("k"), true))
	_, err = db.Get([]byte("k"), ReadSettings{}, nil)
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestWriteBatchAndSnapshot(t *testing.T) {
	db, err := Open(storage.NewMemStorage(), defaults())
	require.NoError(t, err)
	defer db.Close()

	b := new(Batch)
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	require.NoError(t, db.Write(b, false))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, db.Put([]byte("c"), []byte("3"), false))

	it := db.NewIterator(ReadSettings{FillCache: true}, snap)
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	it.Release()
	require.NoError(t, it.Error())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, keys)

	v, err := db.Get([]byte("c"), ReadSettings{}, snap)
	assert.Equal(t, KindNotFound, Classify(err))
	assert.Nil(t, v)
}

func TestOpenMissingAndExisting(t *testing.T) {
	stor := nopClose{storage.NewMemStorage()}

	s := defaults()
	s.CreateIfMissing = false
	_, err := Open(stor, s)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, Classify(err))

	db, err := Open(stor, defaults())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s = defaults()
	s.ErrorIfExists = true
	_, err = Open(stor, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))
	assert.Equal(t, KindAlreadyExists, Classify(err))
}

func TestRecover(t *testing.T) {
	stor := nopClose{storage.NewMemStorage()}
	db, err := Open(stor, defaults())
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v"), true))
	require.NoError(t, db.Close())

	require.NoError(t, Recover(stor, defaults()))

	db, err = Open(stor, defaults())
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get([]byte("k"), ReadSettings{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestProperty(t *testing.T) {
	db, err := Open(storage.NewMemStorage(), defaults())
	require.NoError(t, err)
	defer db.Close()

	v, ok := db.Property("leveldb.stats")
	assert.True(t, ok)
	assert.NotEmpty(t, v)

	_, ok = db.Property("leveldb.no-such-property")
	assert.False(t, ok)
}

func TestEngineLogForwarded(t *testing.T) {
	log := &recordingLogger{}
	s := defaults()
	s.Logger = log

	db, err := Open(storage.NewMemStorage(), s)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	log.mu.Lock()
	defer log.mu.Unlock()
	require.NotEmpty(t, log.lines)
	assert.True(t, bytes.HasPrefix([]byte(log.lines[0]), []byte(logging.NSEngine)))
}

func TestClosedDB(t *testing.T) {
	db, err := Open(storage.NewMemStorage(), defaults())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.Put([]byte("k"), nil, false)
	assert.Equal(t, KindClosed, Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindOK},
		{leveldb.ErrNotFound, KindNotFound},
		{errors.Wrap(leveldb.ErrNotFound, "get"), KindNotFound},
		{errors.Wrap(ErrMissing, "open"), KindNotFound},
		{errors.Wrap(ErrExists, "open"), KindAlreadyExists},
		{leveldb.ErrClosed, KindClosed},
		{leveldb.ErrSnapshotReleased, KindClosed},
		{lerrors.NewErrCorrupted(storage.FileDesc{}, errors.New("bad block")), KindCorruption},
		{errors.Wrap(lerrors.NewErrCorrupted(storage.FileDesc{}, errors.New("bad block")), "get"), KindCorruption},
		{&os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, KindNotFound},
		{errors.New("disk on fire"), KindIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "corruption", KindCorruption.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

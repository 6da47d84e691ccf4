// Package dump reads and writes portable dump streams of a database.
//
// A dump is a consistent, key-ordered copy of every entry visible at one
// snapshot. It is independent of the engine's on-disk format and can be
// imported into any database.
//
// Stream Format:
//
//	+-----------+-------------+-----------+
//	| "LVLKVDMP" | version (1B) | codec (1B) |
//	+-----------+-------------+-----------+
//	| block*                               |
//	+--------------------------------------+
//	| uvarint(0) | uvarint(record count)   |
//	+--------------------------------------+
//
// Block Format:
//
//	+---------------+---------+-------------------+
//	| uvarint(len)  | payload | xxh3-64 LE (8B)   |
//	+---------------+---------+-------------------+
//
// The checksum covers the payload as stored. A payload decompresses with
// the stream codec into a sequence of records, each a protobuf-wire message
// with field 1 (key, bytes) followed by field 2 (value, bytes).
package dump

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aalhour/lvlkv/internal/compression"
)

// Magic opens every dump stream.
const Magic = "LVLKVDMP"

// Version is the stream format version written by this package.
const Version = 1

// headerSize is magic + version + codec.
const headerSize = len(Magic) + 2

// DefaultBlockSize is the uncompressed size at which a block is flushed.
const DefaultBlockSize = 64 << 10

// maxBlockSize bounds the stored size of one block when reading.
const maxBlockSize = 1 << 30

const (
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

var (
	// ErrCorrupt indicates a stream that fails its checksums or structure.
	ErrCorrupt = errors.New("dump: corrupt stream")

	// ErrBadMagic indicates input that is not a dump stream.
	ErrBadMagic = errors.New("dump: not a dump stream")

	// ErrVersion indicates a stream written by an unknown format version.
	ErrVersion = errors.New("dump: unsupported version")

	// ErrClosed is returned by a Writer after Close.
	ErrClosed = errors.New("dump: writer closed")
)

// Codec selects block compression.
type Codec = compression.Type

// Supported codecs.
const (
	CodecNone   = compression.NoCompression
	CodecSnappy = compression.SnappyCompression
	CodecLZ4    = compression.LZ4Compression
	CodecZstd   = compression.ZstdCompression
)

// ParseCodec maps "none", "snappy", "lz4" or "zstd" to a Codec.
func ParseCodec(name string) (Codec, error) {
	return compression.ParseType(name)
}

func appendRecord(dst, key, value []byte) []byte {
	dst = protowire.AppendTag(dst, fieldKey, protowire.BytesType)
	dst = protowire.AppendBytes(dst, key)
	dst = protowire.AppendTag(dst, fieldValue, protowire.BytesType)
	return protowire.AppendBytes(dst, value)
}

// consumeField reads one bytes field numbered want from b.
func consumeField(b []byte, want protowire.Number) (field []byte, n int, err error) {
	num, typ, tn := protowire.ConsumeTag(b)
	if tn < 0 {
		return nil, 0, errors.Wrap(ErrCorrupt, protowire.ParseError(tn).Error())
	}
	if num != want || typ != protowire.BytesType {
		return nil, 0, errors.Wrapf(ErrCorrupt, "unexpected field %d type %d", num, typ)
	}
	field, fn := protowire.ConsumeBytes(b[tn:])
	if fn < 0 {
		return nil, 0, errors.Wrap(ErrCorrupt, protowire.ParseError(fn).Error())
	}
	return field, tn + fn, nil
}

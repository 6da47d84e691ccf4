// Package compression provides the block codecs used by dump streams.
//
// Each dump block carries a single codec byte in the stream header; every
// block payload in that stream is compressed with the same codec.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Type represents a compression algorithm.
type Type uint8

const (
	// NoCompression stores payloads as-is.
	NoCompression Type = 0x0

	// SnappyCompression uses Google Snappy block format.
	SnappyCompression Type = 0x1

	// LZ4Compression uses the LZ4 frame format.
	LZ4Compression Type = 0x4

	// ZstdCompression uses Zstandard.
	ZstdCompression Type = 0x7
)

// ErrUnsupported is returned for codec bytes this package does not know.
var ErrUnsupported = errors.New("compression: unsupported type")

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case LZ4Compression:
		return "lz4"
	case ZstdCompression:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// IsSupported returns true if the compression type is supported.
func (t Type) IsSupported() bool {
	switch t {
	case NoCompression, SnappyCompression, LZ4Compression, ZstdCompression:
		return true
	default:
		return false
	}
}

// ParseType maps a codec name ("none", "snappy", "lz4", "zstd") to its Type.
// Matching is case-insensitive.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "lz4":
		return LZ4Compression, nil
	case "zstd":
		return ZstdCompression, nil
	default:
		return 0, errors.Wrapf(ErrUnsupported, "codec %q", name)
	}
}

// Compress compresses data using the specified compression type.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		return snappy.Encode(nil, data), nil

	case LZ4Compression:
		return compressLZ4(data)

	case ZstdCompression:
		return compressZstd(data)

	default:
		return nil, errors.Wrapf(ErrUnsupported, "compress %s", t)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
		return nil, errors.Wrap(err, "lz4 apply level")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "lz4 write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 close")
	}
	return buf.Bytes(), nil
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	defer func() { _ = encoder.Close() }()
	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses data using the specified compression type.
func Decompress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil

	case SnappyCompression:
		out, err := snappy.Decode(nil, data)
		return out, errors.Wrap(err, "snappy decode")

	case LZ4Compression:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		return out, errors.Wrap(err, "lz4 read")

	case ZstdCompression:
		return decompressZstd(data)

	default:
		return nil, errors.Wrapf(ErrUnsupported, "decompress %s", t)
	}
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decoder")
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(data, nil)
	return out, errors.Wrap(err, "zstd decode")
}

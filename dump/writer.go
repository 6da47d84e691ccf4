// writer.go implements dump stream writing.
package dump

import (
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/aalhour/lvlkv/internal/checksum"
	"github.com/aalhour/lvlkv/internal/compression"
)

// WriterOptions configures a Writer. The zero value writes uncompressed
// blocks of DefaultBlockSize.
type WriterOptions struct {
	Codec     Codec
	BlockSize int
}

// Writer writes records to a dump stream.
//
// Records are buffered into blocks; each full block is compressed,
// checksummed and written. Close writes the trailer and must be called for
// the stream to be readable.
type Writer struct {
	dest      io.Writer
	codec     Codec
	blockSize int

	block  []byte // Uncompressed records of the current block
	frame  []byte // Reusable output buffer
	count  uint64
	closed bool
}

// NewWriter writes the stream header to dest and returns a Writer.
func NewWriter(dest io.Writer, opts WriterOptions) (*Writer, error) {
	if !opts.Codec.IsSupported() {
		return nil, errors.Wrapf(compression.ErrUnsupported, "codec %s", opts.Codec)
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	header := make([]byte, 0, headerSize)
	header = append(header, Magic...)
	header = append(header, Version, byte(opts.Codec))
	if _, err := dest.Write(header); err != nil {
		return nil, errors.Wrap(err, "write header")
	}
	return &Writer{
		dest:      dest,
		codec:     opts.Codec,
		blockSize: opts.BlockSize,
	}, nil
}

// Add appends one record. key and value are copied.
func (w *Writer) Add(key, value []byte) error {
	if w.closed {
		return ErrClosed
	}
	w.block = appendRecord(w.block, key, value)
	w.count++
	if len(w.block) >= w.blockSize {
		return w.flush()
	}
	return nil
}

// Count returns the number of records added so far.
func (w *Writer) Count() uint64 {
	return w.count
}

func (w *Writer) flush() error {
	if len(w.block) == 0 {
		return nil
	}
	payload, err := compression.Compress(w.codec, w.block)
	if err != nil {
		return err
	}
	w.frame = protowire.AppendVarint(w.frame[:0], uint64(len(payload)))
	w.frame = append(w.frame, payload...)
	w.frame = checksum.Append(w.frame, payload)
	if _, err := w.dest.Write(w.frame); err != nil {
		return errors.Wrap(err, "write block")
	}
	w.block = w.block[:0]
	return nil
}

// Close flushes the last block and writes the trailer. It does not close
// the destination.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if err := w.flush(); err != nil {
		return err
	}
	w.frame = protowire.AppendVarint(w.frame[:0], 0)
	w.frame = protowire.AppendVarint(w.frame, w.count)
	_, err := w.dest.Write(w.frame)
	return errors.Wrap(err, "write trailer")
}

// reader.go implements dump stream reading.
package dump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv/internal/checksum"
	"github.com/aalhour/lvlkv/internal/compression"
)

// Reader reads records from a dump stream in the order they were written.
type Reader struct {
	src   *bufio.Reader
	codec Codec

	stored []byte // Current block as stored, reused between blocks
	block  []byte // Decompressed records of the current block
	off    int
	count  uint64
	done   bool
}

// NewReader reads and validates the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	src := bufio.NewReader(r)
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(src, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrBadMagic, "short header")
		}
		return nil, errors.Wrap(err, "read header")
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if v := header[len(Magic)]; v != Version {
		return nil, errors.Wrapf(ErrVersion, "version %d", v)
	}
	codec := Codec(header[len(Magic)+1])
	if !codec.IsSupported() {
		return nil, errors.Wrapf(compression.ErrUnsupported, "codec %s", codec)
	}
	return &Reader{src: src, codec: codec}, nil
}

// Codec returns the codec the stream was written with.
func (r *Reader) Codec() Codec {
	return r.codec
}

// Count returns the number of records returned so far.
func (r *Reader) Count() uint64 {
	return r.count
}

// Next returns the next record. It returns io.EOF after the last record
// once the trailer count has been checked. The returned slices are valid
// until the next call.
func (r *Reader) Next() (key, value []byte, err error) {
	for r.off >= len(r.block) {
		if r.done {
			return nil, nil, io.EOF
		}
		if err := r.readBlock(); err != nil {
			return nil, nil, err
		}
	}

	rest := r.block[r.off:]
	key, kn, err := consumeField(rest, fieldKey)
	if err != nil {
		return nil, nil, err
	}
	value, vn, err := consumeField(rest[kn:], fieldValue)
	if err != nil {
		return nil, nil, err
	}
	r.off += kn + vn
	r.count++
	return key, value, nil
}

func (r *Reader) readBlock() error {
	n, err := binary.ReadUvarint(r.src)
	if err != nil {
		return truncated(err, "block length")
	}
	if n == 0 {
		return r.readTrailer()
	}
	if n > maxBlockSize {
		return errors.Wrapf(ErrCorrupt, "block length %d", n)
	}

	size := int(n) + checksum.Size
	if cap(r.stored) < size {
		r.stored = make([]byte, size)
	}
	r.stored = r.stored[:size]
	if _, err := io.ReadFull(r.src, r.stored); err != nil {
		return truncated(err, "block")
	}
	payload, sum := r.stored[:n], r.stored[n:]
	if !checksum.Verify(payload, sum) {
		return errors.Wrap(ErrCorrupt, "block checksum mismatch")
	}
	block, err := compression.Decompress(r.codec, payload)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "decompress block: %v", err)
	}
	if len(block) == 0 {
		return errors.Wrap(ErrCorrupt, "empty block")
	}
	r.block, r.off = block, 0
	return nil
}

func (r *Reader) readTrailer() error {
	want, err := binary.ReadUvarint(r.src)
	if err != nil {
		return truncated(err, "trailer")
	}
	if want != r.count {
		return errors.Wrapf(ErrCorrupt, "trailer count %d, read %d records", want, r.count)
	}
	r.done = true
	r.block, r.off = nil, 0
	return nil
}

// truncated maps an unexpected end of input to ErrCorrupt.
func truncated(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrCorrupt, "truncated %s", what)
	}
	return errors.Wrapf(err, "read %s", what)
}

// Package checksum computes the block checksums stored in dump streams.
package checksum

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Size is the encoded length of a block checksum.
const Size = 8

// Block returns the XXH3-64 checksum of data.
func Block(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Append appends the little-endian checksum of data to dst.
func Append(dst, data []byte) []byte {
	return binary.LittleEndian.AppendUint64(dst, Block(data))
}

// Verify reports whether sum holds the encoded checksum of data.
// A sum of the wrong length never verifies.
func Verify(data, sum []byte) bool {
	if len(sum) != Size {
		return false
	}
	return binary.LittleEndian.Uint64(sum) == Block(data)
}

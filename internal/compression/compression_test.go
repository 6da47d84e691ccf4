package compression

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supported = []Type{NoCompression, SnappyCompression, LZ4Compression, ZstdCompression}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 8192)
	rng.Read(random)

	inputs := map[string][]byte{
		"repetitive": bytes.Repeat([]byte("hello world "), 100),
		"random":     random,
		"single":     {0x42},
	}

	for _, typ := range supported {
		for name, data := range inputs {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				compressed, err := Compress(typ, data)
				require.NoError(t, err)

				decompressed, err := Decompress(typ, compressed)
				require.NoError(t, err)
				assert.Equal(t, data, decompressed)
			})
		}
	}
}

func TestNoCompressionIsIdentity(t *testing.T) {
	data := []byte("stored as-is")
	compressed, err := Compress(NoCompression, data)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1024)
	for _, typ := range []Type{SnappyCompression, LZ4Compression, ZstdCompression} {
		compressed, err := Compress(typ, data)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data), typ.String())
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{NoCompression, "none"},
		{SnappyCompression, "snappy"},
		{LZ4Compression, "lz4"},
		{ZstdCompression, "zstd"},
		{Type(255), "unknown(255)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range supported {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := ParseType("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, ZstdCompression, got)

	got, err = ParseType("")
	require.NoError(t, err)
	assert.Equal(t, NoCompression, got)

	_, err = ParseType("bzip2")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestUnsupportedTypes(t *testing.T) {
	for _, typ := range []Type{0x2, 0x3, 0x5, 0x6, 0xff} {
		assert.False(t, typ.IsSupported())

		_, err := Compress(typ, []byte("x"))
		assert.True(t, errors.Is(err, ErrUnsupported), "compress %s", typ)

		_, err = Decompress(typ, []byte("x"))
		assert.True(t, errors.Is(err, ErrUnsupported), "decompress %s", typ)
	}
	for _, typ := range supported {
		assert.True(t, typ.IsSupported())
	}
}

func TestDecompressGarbage(t *testing.T) {
	garbage := []byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa}
	for _, typ := range []Type{SnappyCompression, LZ4Compression, ZstdCompression} {
		_, err := Decompress(typ, garbage)
		assert.Error(t, err, typ.String())
	}
}

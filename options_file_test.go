package lvlkv

// options_file_test.go implements tests for TOML options files.

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleOptionsFile = `
[db]
create_if_missing = true
paranoid_checks = true
write_buffer_size = 8388608
max_open_files = 200
block_size = 16384
compression = "none"
cache_capacity = 33554432

[read]
verify_checksums = true
fill_cache = false

[write]
sync = true
`

func TestOptionsFile_Apply(t *testing.T) {
	f, err := ParseOptionsFile(strings.NewReader(sampleOptionsFile))
	if err != nil {
		t.Fatalf("ParseOptionsFile failed: %v", err)
	}

	opts := NewOptions()
	defer opts.Destroy()
	cache := f.Apply(opts)
	if cache == nil || cache.Capacity() != 32<<20 || opts.Cache() != cache {
		t.Fatal("cache_capacity not applied")
	}
	defer func() { _ = cache.Destroy() }()

	if !opts.CreateIfMissing() || !opts.ParanoidChecks() || opts.ErrorIfExists() {
		t.Fatal("boolean keys not applied")
	}
	if opts.WriteBufferSize() != 8<<20 || opts.MaxOpenFiles() != 200 || opts.BlockSize() != 16<<10 {
		t.Fatal("size keys not applied")
	}
	// Contract: keys left out keep their defaults.
	if opts.BlockRestartInterval() != DefaultBlockRestartInterval {
		t.Fatal("unset key changed")
	}
	if opts.Compression() != NoCompression {
		t.Fatal("compression not applied")
	}

	ro := f.ReadOptions()
	defer ro.Destroy()
	if !ro.VerifyChecksums() || ro.FillCache() {
		t.Fatal("[read] not applied")
	}
	wo := f.WriteOptions()
	defer wo.Destroy()
	if !wo.Sync() {
		t.Fatal("[write] not applied")
	}
}

func TestOptionsFile_Empty(t *testing.T) {
	f, err := ParseOptionsFile(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseOptionsFile failed: %v", err)
	}
	opts := NewOptions()
	defer opts.Destroy()
	if cache := f.Apply(opts); cache != nil {
		t.Fatal("empty file created a cache")
	}
	if opts.WriteBufferSize() != DefaultWriteBufferSize || opts.Compression() != SnappyCompression {
		t.Fatal("empty file changed defaults")
	}
	ro := f.ReadOptions()
	defer ro.Destroy()
	if !ro.FillCache() {
		t.Fatal("empty file changed read defaults")
	}
}

func TestOptionsFile_Rejects(t *testing.T) {
	bad := map[string]string{
		"unknown key":         "[db]\nblock_cache = 1\n",
		"unknown section":     "[compaction]\nstyle = \"level\"\n",
		"unknown compression": "[db]\ncompression = \"brotli\"\n",
		"wrong type":          "[db]\nblock_size = \"big\"\n",
		"syntax":              "[db\n",
	}
	for name, text := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOptionsFile(strings.NewReader(text))
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("ParseOptionsFile = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestOptionsFile_ReadAndEncode(t *testing.T) {
	if _, err := ReadOptionsFile(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrIOError) {
		t.Fatalf("ReadOptionsFile(missing) = %v, want ErrIOError", err)
	}

	opts := NewOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)
	opts.SetBlockSize(8 << 10)
	opts.SetCompression(NoCompression)
	cache := NewLRUCache(1 << 20)
	defer func() { _ = cache.Destroy() }()
	opts.SetCache(cache)
	wo := NewWriteOptions()
	defer wo.Destroy()
	wo.SetSync(true)

	var buf bytes.Buffer
	if err := OptionsFileOf(opts, nil, wo).Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "opts.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := ReadOptionsFile(path)
	if err != nil {
		t.Fatalf("ReadOptionsFile failed: %v\n%s", err, buf.String())
	}
	if f.DB.CreateIfMissing == nil || !*f.DB.CreateIfMissing {
		t.Fatal("create_if_missing lost")
	}
	if f.DB.BlockSize == nil || *f.DB.BlockSize != 8<<10 {
		t.Fatal("block_size lost")
	}
	if f.DB.Compression == nil || *f.DB.Compression != "none" {
		t.Fatal("compression lost")
	}
	if f.DB.CacheCapacity == nil || *f.DB.CacheCapacity != 1<<20 {
		t.Fatal("cache_capacity lost")
	}
	if f.Read.FillCache != nil {
		t.Fatal("nil ReadOptions produced a [read] section")
	}
	if f.Write.Sync == nil || !*f.Write.Sync {
		t.Fatal("sync lost")
	}
}

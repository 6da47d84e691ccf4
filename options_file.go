package lvlkv

// options_file.go implements TOML options files.
//
// Format:
//
//	[db]
//	create_if_missing = true
//	write_buffer_size = 8388608
//	compression = "snappy"   # or "none"
//	cache_capacity = 67108864
//
//	[read]
//	verify_checksums = true
//	fill_cache = false
//
//	[write]
//	sync = true
//
// Keys left out keep their defaults. Unknown keys are rejected.

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// OptionsFile is a parsed options file. nil fields were not set.
type OptionsFile struct {
	DB    DBSection    `toml:"db"`
	Read  ReadSection  `toml:"read"`
	Write WriteSection `toml:"write"`
}

// DBSection holds open-time settings.
type DBSection struct {
	CreateIfMissing      *bool   `toml:"create_if_missing"`
	ErrorIfExists        *bool   `toml:"error_if_exists"`
	ParanoidChecks       *bool   `toml:"paranoid_checks"`
	WriteBufferSize      *int    `toml:"write_buffer_size"`
	MaxOpenFiles         *int    `toml:"max_open_files"`
	BlockSize            *int    `toml:"block_size"`
	BlockRestartInterval *int    `toml:"block_restart_interval"`
	Compression          *string `toml:"compression"`
	CacheCapacity        *int    `toml:"cache_capacity"`
}

// ReadSection holds per-read settings.
type ReadSection struct {
	VerifyChecksums *bool `toml:"verify_checksums"`
	FillCache       *bool `toml:"fill_cache"`
}

// WriteSection holds per-write settings.
type WriteSection struct {
	Sync *bool `toml:"sync"`
}

// ParseOptionsFile decodes an options file from r.
func ParseOptionsFile(r io.Reader) (*OptionsFile, error) {
	const op = "ParseOptionsFile"
	var f OptionsFile
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, newError(CodeInvalidArgument, op, errors.Wrap(err, "decode"))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, invalidArgument(op, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if f.DB.Compression != nil {
		if _, err := parseCompression(*f.DB.Compression); err != nil {
			return nil, newError(CodeInvalidArgument, op, err)
		}
	}
	return &f, nil
}

// ReadOptionsFile reads and decodes the options file at path.
func ReadOptionsFile(path string) (*OptionsFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, newError(CodeIOError, "ReadOptionsFile", errors.Wrap(err, "open"))
	}
	defer func() { _ = file.Close() }()
	return ParseOptionsFile(file)
}

func parseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "no":
		return NoCompression, nil
	case "snappy":
		return SnappyCompression, nil
	default:
		return 0, errors.Errorf("unknown compression %q", name)
	}
}

func compressionName(c Compression) string {
	if c == NoCompression {
		return "none"
	}
	return "snappy"
}

// Apply copies every set [db] key onto o. If cache_capacity is set, a new
// Cache is attached to o and returned; the caller destroys it after the
// databases using it have closed.
func (f *OptionsFile) Apply(o *Options) *Cache {
	d := f.DB
	if d.CreateIfMissing != nil {
		o.SetCreateIfMissing(*d.CreateIfMissing)
	}
	if d.ErrorIfExists != nil {
		o.SetErrorIfExists(*d.ErrorIfExists)
	}
	if d.ParanoidChecks != nil {
		o.SetParanoidChecks(*d.ParanoidChecks)
	}
	if d.WriteBufferSize != nil {
		o.SetWriteBufferSize(*d.WriteBufferSize)
	}
	if d.MaxOpenFiles != nil {
		o.SetMaxOpenFiles(*d.MaxOpenFiles)
	}
	if d.BlockSize != nil {
		o.SetBlockSize(*d.BlockSize)
	}
	if d.BlockRestartInterval != nil {
		o.SetBlockRestartInterval(*d.BlockRestartInterval)
	}
	if d.Compression != nil {
		// Validated by ParseOptionsFile.
		c, _ := parseCompression(*d.Compression)
		o.SetCompression(c)
	}
	if d.CacheCapacity == nil {
		return nil
	}
	cache := NewLRUCache(*d.CacheCapacity)
	o.SetCache(cache)
	return cache
}

// ReadOptions returns new read options holding the [read] keys.
func (f *OptionsFile) ReadOptions() *ReadOptions {
	ro := NewReadOptions()
	if f.Read.VerifyChecksums != nil {
		ro.SetVerifyChecksums(*f.Read.VerifyChecksums)
	}
	if f.Read.FillCache != nil {
		ro.SetFillCache(*f.Read.FillCache)
	}
	return ro
}

// WriteOptions returns new write options holding the [write] keys.
func (f *OptionsFile) WriteOptions() *WriteOptions {
	wo := NewWriteOptions()
	if f.Write.Sync != nil {
		wo.SetSync(*f.Write.Sync)
	}
	return wo
}

// OptionsFileOf captures o, ro and wo into an options file. Nil handles
// leave their section empty.
func OptionsFileOf(o *Options, ro *ReadOptions, wo *WriteOptions) *OptionsFile {
	f := &OptionsFile{}
	if o != nil {
		compression := compressionName(o.Compression())
		f.DB = DBSection{
			CreateIfMissing:      ptr(o.CreateIfMissing()),
			ErrorIfExists:        ptr(o.ErrorIfExists()),
			ParanoidChecks:       ptr(o.ParanoidChecks()),
			WriteBufferSize:      ptr(o.WriteBufferSize()),
			MaxOpenFiles:         ptr(o.MaxOpenFiles()),
			BlockSize:            ptr(o.BlockSize()),
			BlockRestartInterval: ptr(o.BlockRestartInterval()),
			Compression:          &compression,
		}
		if c := o.Cache(); c != nil {
			f.DB.CacheCapacity = ptr(c.Capacity())
		}
	}
	if ro != nil {
		f.Read = ReadSection{
			VerifyChecksums: ptr(ro.VerifyChecksums()),
			FillCache:       ptr(ro.FillCache()),
		}
	}
	if wo != nil {
		f.Write = WriteSection{Sync: ptr(wo.Sync())}
	}
	return f
}

// Encode writes f as TOML.
func (f *OptionsFile) Encode(w io.Writer) error {
	return errors.Wrap(toml.NewEncoder(w).Encode(f), "encode options file")
}

func ptr[T any](v T) *T {
	return &v
}

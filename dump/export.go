// export.go implements copying a database to and from dump streams.
package dump

import (
	"io"

	"github.com/pkg/errors"

	"github.com/aalhour/lvlkv"
	"github.com/aalhour/lvlkv/internal/logging"
)

// DefaultImportBatchSize is the number of records applied per write batch.
const DefaultImportBatchSize = 1000

// ExportOptions configures Export. nil means defaults.
type ExportOptions struct {
	WriterOptions
	Logger lvlkv.Logger
}

// ImportOptions configures Import. nil means defaults.
type ImportOptions struct {
	// BatchSize is the number of records applied per write. Values <= 0
	// select DefaultImportBatchSize.
	BatchSize int
	Logger    lvlkv.Logger
}

// Export writes every entry of db visible to ro to w in key order and
// returns the number of records written.
//
// When ro carries no snapshot, Export takes one for the duration of the
// scan so the dump is consistent. Reads bypass the block cache unless ro
// asks otherwise. Every handle Export creates is released before it
// returns.
func Export(db *lvlkv.DB, ro *lvlkv.ReadOptions, w io.Writer, opts *ExportOptions) (int, error) {
	if opts == nil {
		opts = &ExportOptions{}
	}
	log := logging.OrDefault(opts.Logger)

	scan := lvlkv.NewReadOptions()
	defer scan.Destroy()
	scan.SetFillCache(false)

	var snap *lvlkv.Snapshot
	if ro != nil {
		scan.SetVerifyChecksums(ro.VerifyChecksums())
		scan.SetFillCache(ro.FillCache())
		snap = ro.Snapshot()
	}
	if snap == nil {
		own, err := db.NewSnapshot()
		if err != nil {
			return 0, err
		}
		defer func() { _ = db.ReleaseSnapshot(own) }()
		snap = own
	}
	scan.SetSnapshot(snap)

	it, err := db.NewIterator(scan)
	if err != nil {
		return 0, err
	}
	defer func() { _ = it.Close() }()

	dw, err := NewWriter(w, opts.WriterOptions)
	if err != nil {
		return 0, err
	}
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if err := dw.Add(it.Key(), it.Value()); err != nil {
			return int(dw.Count()), err
		}
	}
	if err := it.Error(); err != nil {
		return int(dw.Count()), err
	}
	if err := dw.Close(); err != nil {
		return int(dw.Count()), err
	}

	n := int(dw.Count())
	log.Infof("%sexported %d records from %s (codec %s)", logging.NSDump, n, db.Name(), opts.Codec)
	return n, nil
}

// Import applies every record of the dump stream r to db and returns the
// number of records applied.
//
// Records are applied in batches of opts.BatchSize. Each batch is atomic
// but the import as a whole is not: on error the records of earlier
// batches remain written.
func Import(db *lvlkv.DB, wo *lvlkv.WriteOptions, r io.Reader, opts *ImportOptions) (int, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}
	log := logging.OrDefault(opts.Logger)

	dr, err := NewReader(r)
	if err != nil {
		return 0, err
	}

	wb := lvlkv.NewWriteBatch()
	defer wb.Destroy()

	applied := 0
	flush := func() error {
		if wb.Count() == 0 {
			return nil
		}
		if err := db.Write(wo, wb); err != nil {
			return err
		}
		applied += wb.Count()
		wb.Clear()
		return nil
	}

	for {
		key, value, err := dr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("%simport into %s stopped after %d records: %v", logging.NSDump, db.Name(), applied, err)
			return applied, errors.Wrapf(err, "record %d", dr.Count())
		}
		wb.Put(key, value)
		if wb.Count() >= batchSize {
			if err := flush(); err != nil {
				return applied, err
			}
		}
	}
	if err := flush(); err != nil {
		return applied, err
	}

	log.Infof("%simported %d records into %s", logging.NSDump, applied, db.Name())
	return applied, nil
}

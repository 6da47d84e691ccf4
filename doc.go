/*
Package lvlkv is a handle layer over an embedded LSM key/value engine
(goleveldb).

Every resource is an explicit handle with an explicit release: Options,
ReadOptions, WriteOptions, Cache, Env, DB, WriteBatch, Iterator and
Snapshot. The layer enforces their lifecycles: using a handle after its
release, releasing it twice, closing a DB with open iterators or
snapshots, or destroying a Cache or Env that an open DB still uses are
usage violations. Violations panic by default; see SetUsageHandler.

# Usage

	opts := lvlkv.NewOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)

	db, err := lvlkv.Open(opts, "/var/lib/app/db")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Put(nil, []byte("k"), []byte("v")); err != nil {
		return err
	}
	v, err := db.Get(nil, []byte("k"))

Nil ReadOptions and WriteOptions mean defaults. Keys and values are
arbitrary byte strings ordered bytewise.

# Errors

Failures carry a Code (NotFound, Corruption, InvalidArgument, IOError,
AlreadyExists). Match them with errors.Is against the Err sentinels or
inspect them with CodeOf.

# Concurrency

A DB is safe for concurrent use. Iterators and WriteBatches are
single-owner. Snapshots are immutable and may be shared.
*/
package lvlkv

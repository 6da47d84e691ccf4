package lvlkv

// Layer properties served by DB.PropertyValue in addition to the engine's.
const (
	// PropertyOutstandingIterators is the number of open iterators.
	PropertyOutstandingIterators = "lvlkv.outstanding-iterators"
	// PropertyOutstandingSnapshots is the number of unreleased snapshots.
	PropertyOutstandingSnapshots = "lvlkv.outstanding-snapshots"
	// PropertyStats is the formatted Statistics, if one is attached.
	PropertyStats = "lvlkv.stats"
)

// Engine properties, passed through unchanged.
const (
	PropertyEngineStats   = "leveldb.stats"
	PropertySSTables      = "leveldb.sstables"
	PropertyBlockPool     = "leveldb.blockpool"
	PropertyCachedBlock   = "leveldb.cachedblock"
	PropertyOpenedTables  = "leveldb.openedtables"
	PropertyAliveSnaps    = "leveldb.alivesnaps"
	PropertyAliveIters    = "leveldb.aliveiters"
	PropertyFilesAtLevelN = "leveldb.num-files-at-level" // append the level number
)

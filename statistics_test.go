package lvlkv

// statistics_test.go implements tests for statistics and database properties.

import (
	"strings"
	"sync"
	"testing"
)

func TestStatistics_TickersAndHistograms(t *testing.T) {
	s := NewStatistics()
	s.RecordTick(TickerKeysWritten, 3)
	s.RecordTick(TickerKeysWritten, 2)
	if got := s.GetTickerCount(TickerKeysWritten); got != 5 {
		t.Fatalf("ticker = %d, want 5", got)
	}
	s.SetTickerCount(TickerKeysRead, 42)
	if got := s.GetTickerCount(TickerKeysRead); got != 42 {
		t.Fatalf("ticker = %d, want 42", got)
	}

	for _, v := range []uint64{10, 30, 20} {
		s.MeasureTime(HistogramBytesPerWrite, v)
	}
	h := s.GetHistogramData(HistogramBytesPerWrite)
	if h.Count != 3 || h.Sum != 60 || h.Min != 10 || h.Max != 30 || h.Average != 20 {
		t.Fatalf("histogram = %+v", h)
	}
	if empty := s.GetHistogramData(HistogramDBGet); empty.Count != 0 {
		t.Fatalf("untouched histogram = %+v", empty)
	}

	out := s.String()
	for _, want := range []string{"lvlkv.keys.written : 5", "lvlkv.bytes.per.write", "Avg: 20.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("String() = %q, missing %q", out, want)
		}
	}

	s.Reset()
	if s.GetTickerCount(TickerKeysWritten) != 0 || s.GetHistogramData(HistogramBytesPerWrite).Count != 0 {
		t.Fatal("Reset left data behind")
	}
}

func TestStatistics_OutOfRange(t *testing.T) {
	s := NewStatistics()
	s.RecordTick(TickerEnumMax, 1)
	s.MeasureTime(HistogramEnumMax, 1)
	if s.GetTickerCount(TickerEnumMax) != 0 || s.GetHistogramData(-1).Count != 0 {
		t.Fatal("out-of-range types recorded")
	}
	if TickerType(-1).String() != "unknown" || HistogramEnumMax.String() != "unknown" {
		t.Fatal("out-of-range names")
	}
}

func TestStatistics_Concurrent(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				s.RecordTick(TickerIteratorNext, 1)
				s.MeasureTime(HistogramDBGet, uint64(i))
			}
		}()
	}
	wg.Wait()
	if got := s.GetTickerCount(TickerIteratorNext); got != 8000 {
		t.Fatalf("ticker = %d, want 8000", got)
	}
	if h := s.GetHistogramData(HistogramDBGet); h.Count != 8000 || h.Min != 0 || h.Max != 999 {
		t.Fatalf("histogram = %+v", h)
	}
}

// TestStatistics_RecordedByDatabase verifies that an attached collector sees
// every handle operation.
func TestStatistics_RecordedByDatabase(t *testing.T) {
	opts := newMemOptions(t)
	stats := NewStatistics()
	opts.SetStatistics(stats)
	db := openDB(t, opts, "db")

	mustPut(t, db, "a", "1")
	mustPut(t, db, "b", "22")
	_ = mustGet(t, db, nil, "b")
	_, _ = db.Get(nil, []byte("missing"))
	if err := db.Delete(nil, []byte("a")); err != nil {
		t.Fatal(err)
	}
	wb := NewWriteBatch()
	defer wb.Destroy()
	wb.Put([]byte("c"), []byte("3"))
	wb.Put([]byte("d"), []byte("4"))
	if err := db.Write(nil, wb); err != nil {
		t.Fatal(err)
	}
	it, err := db.NewIterator(nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = scan(t, it)
	it.SeekToLast()
	it.Prev()
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	snap, err := db.NewSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReleaseSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	want := map[TickerType]uint64{
		TickerKeysWritten:         2,
		TickerKeysDeleted:         1,
		TickerKeysRead:            2,
		TickerKeysFound:           1,
		TickerKeysNotFound:        1,
		TickerBytesWritten:        5 + uint64(wb.size()),
		TickerBytesRead:           2,
		TickerBatchesWritten:      1,
		TickerBatchEntriesWritten: 2,
		TickerIteratorsCreated:    1,
		TickerIteratorsClosed:     1,
		TickerIteratorSeek:        2,
		TickerIteratorNext:        3,
		TickerIteratorPrev:        1,
		TickerSnapshotsCreated:    1,
		TickerSnapshotsReleased:   1,
		TickerForcedReleases:      0,
	}
	for ticker, n := range want {
		if got := stats.GetTickerCount(ticker); got != n {
			t.Errorf("%s = %d, want %d", ticker, got, n)
		}
	}
	if h := stats.GetHistogramData(HistogramBatchEntries); h.Count != 1 || h.Max != 2 {
		t.Errorf("batch entries histogram = %+v", h)
	}
	if h := stats.GetHistogramData(HistogramDBWrite); h.Count != 4 {
		t.Errorf("write histogram count = %d, want 4", h.Count)
	}

	v, ok := db.PropertyValue(PropertyStats)
	if !ok || !strings.Contains(v, "lvlkv.keys.written : 2") {
		t.Fatalf("%s = %q, %v", PropertyStats, v, ok)
	}
}

func TestProperties_LayerAndEngine(t *testing.T) {
	db := openMemDB(t)
	mustPut(t, db, "k", "v")

	if v, ok := db.PropertyValue(PropertyStats); ok || v != "" {
		t.Fatalf("%s without statistics = %q, %v", PropertyStats, v, ok)
	}

	it, err := db.NewIterator(nil)
	if err != nil {
		t.Fatal(err)
	}
	s1, _ := db.NewSnapshot()
	s2, _ := db.NewSnapshot()
	check := func(name, want string) {
		t.Helper()
		if v, ok := db.PropertyValue(name); !ok || v != want {
			t.Fatalf("%s = %q, %v; want %q", name, v, ok, want)
		}
	}
	check(PropertyOutstandingIterators, "1")
	check(PropertyOutstandingSnapshots, "2")

	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	_ = db.ReleaseSnapshot(s1)
	_ = db.ReleaseSnapshot(s2)
	check(PropertyOutstandingIterators, "0")
	check(PropertyOutstandingSnapshots, "0")

	for _, name := range []string{PropertyEngineStats, PropertySSTables, PropertyFilesAtLevelN + "0"} {
		if _, ok := db.PropertyValue(name); !ok {
			t.Fatalf("engine property %s absent", name)
		}
	}

	// Contract: unknown names are absent, not errors.
	for _, name := range []string{"", "nope", "leveldb.nope", "lvlkv.nope"} {
		if v, ok := db.PropertyValue(name); ok || v != "" {
			t.Fatalf("PropertyValue(%q) = %q, %v", name, v, ok)
		}
	}
}

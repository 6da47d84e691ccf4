package lvlkv

// statistics.go implements the Statistics collector attached through
// Options.SetStatistics and reported by the "lvlkv.stats" property.

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerKeysWritten is the count of keys written by Put.
	TickerKeysWritten TickerType = iota
	// TickerKeysDeleted is the count of keys removed by Delete.
	TickerKeysDeleted
	// TickerKeysRead is the count of Get calls.
	TickerKeysRead
	// TickerKeysFound is the count of Get calls that found the key.
	TickerKeysFound
	// TickerKeysNotFound is the count of Get calls that missed.
	TickerKeysNotFound
	// TickerBytesWritten is the total key and value bytes written.
	TickerBytesWritten
	// TickerBytesRead is the total value bytes returned by Get.
	TickerBytesRead
	// TickerBatchesWritten is the count of applied write batches.
	TickerBatchesWritten
	// TickerBatchEntriesWritten is the count of entries in applied batches.
	TickerBatchEntriesWritten
	// TickerIteratorsCreated is the count of iterators created.
	TickerIteratorsCreated
	// TickerIteratorsClosed is the count of iterators closed by the caller.
	TickerIteratorsClosed
	// TickerIteratorSeek is the count of SeekToFirst, SeekToLast and Seek calls.
	TickerIteratorSeek
	// TickerIteratorNext is the count of Iterator.Next calls.
	TickerIteratorNext
	// TickerIteratorPrev is the count of Iterator.Prev calls.
	TickerIteratorPrev
	// TickerSnapshotsCreated is the count of snapshots taken.
	TickerSnapshotsCreated
	// TickerSnapshotsReleased is the count of snapshots released by the caller.
	TickerSnapshotsReleased
	// TickerForcedReleases is the count of handles released by Close.
	TickerForcedReleases

	// TickerEnumMax is the maximum ticker type for sizing arrays.
	TickerEnumMax
)

var tickerNames = [TickerEnumMax]string{
	"lvlkv.keys.written",
	"lvlkv.keys.deleted",
	"lvlkv.keys.read",
	"lvlkv.keys.found",
	"lvlkv.keys.notfound",
	"lvlkv.bytes.written",
	"lvlkv.bytes.read",
	"lvlkv.batches.written",
	"lvlkv.batch.entries.written",
	"lvlkv.iterators.created",
	"lvlkv.iterators.closed",
	"lvlkv.iterator.seek",
	"lvlkv.iterator.next",
	"lvlkv.iterator.prev",
	"lvlkv.snapshots.created",
	"lvlkv.snapshots.released",
	"lvlkv.forced.releases",
}

// String returns the name of the ticker type.
func (t TickerType) String() string {
	if t < 0 || t >= TickerEnumMax {
		return "unknown"
	}
	return tickerNames[t]
}

// HistogramType represents different types of histograms.
type HistogramType int

const (
	// HistogramDBGet is the histogram for Get latency in microseconds.
	HistogramDBGet HistogramType = iota
	// HistogramDBWrite is the histogram for Put, Delete and Write latency in microseconds.
	HistogramDBWrite
	// HistogramBytesPerRead is the histogram for value bytes per Get.
	HistogramBytesPerRead
	// HistogramBytesPerWrite is the histogram for bytes per write call.
	HistogramBytesPerWrite
	// HistogramBatchEntries is the histogram for entries per applied batch.
	HistogramBatchEntries

	// HistogramEnumMax is the maximum histogram type for sizing arrays.
	HistogramEnumMax
)

var histogramNames = [HistogramEnumMax]string{
	"lvlkv.db.get.micros",
	"lvlkv.db.write.micros",
	"lvlkv.bytes.per.read",
	"lvlkv.bytes.per.write",
	"lvlkv.batch.entries",
}

// String returns the name of the histogram type.
func (h HistogramType) String() string {
	if h < 0 || h >= HistogramEnumMax {
		return "unknown"
	}
	return histogramNames[h]
}

// HistogramData contains histogram statistics.
type HistogramData struct {
	Average float64
	Max     float64
	Min     float64
	Count   uint64
	Sum     uint64
}

// Statistics collects and reports database metrics.
// Implementations must be safe for concurrent use.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick increments a ticker by count.
	RecordTick(tickerType TickerType, count uint64)

	// SetTickerCount sets the ticker to a specific value.
	SetTickerCount(tickerType TickerType, count uint64)

	// GetHistogramData returns histogram statistics.
	GetHistogramData(histogramType HistogramType) HistogramData

	// MeasureTime records a value to a histogram.
	MeasureTime(histogramType HistogramType, value uint64)

	// Reset clears all statistics.
	Reset()

	// String returns a formatted string of all statistics.
	String() string
}

// statisticsImpl is the default implementation of Statistics.
type statisticsImpl struct {
	tickers    [TickerEnumMax]atomic.Uint64
	histograms [HistogramEnumMax]atomic.Pointer[histogramImpl]
}

type histogramImpl struct {
	min   atomic.Uint64
	max   atomic.Uint64
	sum   atomic.Uint64
	count atomic.Uint64
}

func newHistogram() *histogramImpl {
	h := &histogramImpl{}
	h.min.Store(^uint64(0))
	return h
}

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	s := &statisticsImpl{}
	for i := range s.histograms {
		s.histograms[i].Store(newHistogram())
	}
	return s
}

// GetTickerCount returns the current value of a ticker.
func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return s.tickers[tickerType].Load()
}

// RecordTick increments a ticker by count.
func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Add(count)
}

// SetTickerCount sets the ticker to a specific value.
func (s *statisticsImpl) SetTickerCount(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Store(count)
}

// GetHistogramData returns histogram statistics.
func (s *statisticsImpl) GetHistogramData(histogramType HistogramType) HistogramData {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return HistogramData{}
	}
	h := s.histograms[histogramType].Load()
	count := h.count.Load()
	if count == 0 {
		return HistogramData{}
	}
	sum := h.sum.Load()
	return HistogramData{
		Count:   count,
		Sum:     sum,
		Min:     float64(h.min.Load()),
		Max:     float64(h.max.Load()),
		Average: float64(sum) / float64(count),
	}
}

// MeasureTime records a value to a histogram.
func (s *statisticsImpl) MeasureTime(histogramType HistogramType, value uint64) {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return
	}
	h := s.histograms[histogramType].Load()
	h.count.Add(1)
	h.sum.Add(value)

	for {
		old := h.min.Load()
		if value >= old || h.min.CompareAndSwap(old, value) {
			break
		}
	}
	for {
		old := h.max.Load()
		if value <= old || h.max.CompareAndSwap(old, value) {
			break
		}
	}
}

// Reset clears all statistics.
func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		s.tickers[i].Store(0)
	}
	for i := range s.histograms {
		s.histograms[i].Store(newHistogram())
	}
}

// String returns a formatted string of all non-zero statistics.
func (s *statisticsImpl) String() string {
	var b strings.Builder

	b.WriteString("TICKERS:\n")
	for i := range TickerEnumMax {
		if count := s.GetTickerCount(i); count > 0 {
			b.WriteString("  " + i.String() + " : " + strconv.FormatUint(count, 10) + "\n")
		}
	}

	b.WriteString("\nHISTOGRAMS:\n")
	for i := range HistogramEnumMax {
		data := s.GetHistogramData(i)
		if data.Count == 0 {
			continue
		}
		b.WriteString("  " + i.String() + " :\n")
		b.WriteString("    Count: " + strconv.FormatUint(data.Count, 10) + "\n")
		b.WriteString("    Avg: " + strconv.FormatFloat(data.Average, 'f', 2, 64) + "\n")
		b.WriteString("    Min: " + strconv.FormatFloat(data.Min, 'f', 2, 64) + "\n")
		b.WriteString("    Max: " + strconv.FormatFloat(data.Max, 'f', 2, 64) + "\n")
	}

	return b.String()
}

// recorder wraps an optional Statistics so call sites need no nil checks.
type recorder struct {
	s Statistics
}

func (r recorder) tick(t TickerType, n uint64) {
	if r.s != nil {
		r.s.RecordTick(t, n)
	}
}

func (r recorder) measure(h HistogramType, v uint64) {
	if r.s != nil {
		r.s.MeasureTime(h, v)
	}
}

func (r recorder) since(h HistogramType, start time.Time) {
	if r.s != nil {
		r.s.MeasureTime(h, uint64(time.Since(start).Microseconds()))
	}
}

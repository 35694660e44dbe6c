package telemetry

import (
	"math"
	"runtime"
	"runtime/debug"
)

// HeapStats is a heap reading in bytes.
type HeapStats struct {
	Used  uint64
	Total uint64
	Limit uint64
}

// HeapSource exposes heap metrics. ok is false when the host cannot report
// them.
type HeapSource interface {
	Heap() (stats HeapStats, ok bool)
}

// RuntimeHeap reads the Go runtime's memory statistics. The limit is
// LimitBytes when set, then the soft memory limit (GOMEMLIMIT), then
// FallbackBytes. With none of them the source reports itself unsupported.
type RuntimeHeap struct {
	LimitBytes    uint64
	FallbackBytes uint64
}

func (r RuntimeHeap) Heap() (HeapStats, bool) {
	limit := r.limit()
	if limit == 0 {
		return HeapStats{}, false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return HeapStats{Used: ms.HeapAlloc, Total: ms.Sys, Limit: limit}, true
}

func (r RuntimeHeap) limit() uint64 {
	if r.LimitBytes > 0 {
		return r.LimitBytes
	}
	if soft := debug.SetMemoryLimit(-1); soft > 0 && soft != math.MaxInt64 {
		return uint64(soft)
	}
	return r.FallbackBytes
}

// HeapFunc adapts a function to HeapSource.
type HeapFunc func() (HeapStats, bool)

func (f HeapFunc) Heap() (HeapStats, bool) { return f() }

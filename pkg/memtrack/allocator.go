// Package memtrack profiles allocation traffic flowing through an Arrow
// memory.Allocator. A ProfilingAllocator forwards every request unchanged
// to an underlying allocator and, while enabled, records size deltas into a
// bank of atomic counters that can be read at any time as an immutable
// Snapshot. The bookkeeping path takes no locks and performs no allocation
// of its own, so it is safe on the hot path of the process's only
// allocator.
package memtrack

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ProfilingAllocator wraps a memory.Allocator and tracks allocation
// traffic. It never fails on its own account: a nil result from the
// underlying allocator is passed through unprofiled.
type ProfilingAllocator struct {
	mem      memory.Allocator
	enabled  atomic.Bool
	counters counterBank
}

// NewProfilingAllocator wraps underlying; pass nil for the default Go
// allocator. Profiling starts disabled.
func NewProfilingAllocator(underlying memory.Allocator) *ProfilingAllocator {
	if underlying == nil {
		underlying = memory.NewGoAllocator()
	}
	return &ProfilingAllocator{mem: underlying}
}

// Allocate implements memory.Allocator.
func (a *ProfilingAllocator) Allocate(size int) []byte {
	b := a.mem.Allocate(size)
	if b != nil && a.enabled.Load() {
		a.counters.recordAlloc(int64(size))
	}
	return b
}

// AllocateZeroed behaves like Allocate with identical bookkeeping. Go-backed
// allocators already hand out zeroed memory; the clear covers cgo-backed
// underlying allocators that do not.
func (a *ProfilingAllocator) AllocateZeroed(size int) []byte {
	b := a.Allocate(size)
	if b != nil {
		clear(b)
	}
	return b
}

// Reallocate implements memory.Allocator. Growth is booked as a pure
// allocation of the delta and shrinkage as a pure deallocation; the realloc
// call count moves by exactly one per enabled call regardless of delta.
func (a *ProfilingAllocator) Reallocate(size int, b []byte) []byte {
	oldSize := len(b)
	out := a.mem.Reallocate(size, b)
	if out != nil && a.enabled.Load() {
		a.counters.recordRealloc(int64(oldSize), int64(size))
	}
	return out
}

// Free implements memory.Allocator. The freed size is len(b), which the
// allocator contract pairs with the original request.
func (a *ProfilingAllocator) Free(b []byte) {
	if a.enabled.Load() {
		a.counters.recordFree(int64(len(b)))
	}
	a.mem.Free(b)
}

// Enable starts or stops bookkeeping from this point on. It does not
// retroactively adjust counters and is safe to call at any time; a call
// racing in-flight allocations may see individual operations booked under
// either setting.
func (a *ProfilingAllocator) Enable(on bool) {
	a.enabled.Store(on)
}

// IsEnabled reports whether bookkeeping is currently on.
func (a *ProfilingAllocator) IsEnabled() bool {
	return a.enabled.Load()
}

// Reset zeroes all counters, starting a new observation epoch. Snapshots
// taken around a reset that races allocator traffic mix epochs, so reset at
// points where concurrent allocation is under the caller's control.
func (a *ProfilingAllocator) Reset() {
	a.counters.reset()
}

// Snapshot returns a copy of the current counters. It does not block and
// does not allocate.
func (a *ProfilingAllocator) Snapshot() Snapshot {
	return a.counters.snapshot()
}

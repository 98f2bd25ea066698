package memtrack

import "sync/atomic"

// counterBank is the fixed set of allocation counters shared by every
// goroutine touching the allocator. All updates are single-word atomic
// operations; there is no cross-counter atomicity and no locking, so the
// bookkeeping path never blocks and never allocates.
type counterBank struct {
	liveBytes         atomic.Int64
	peakLiveBytes     atomic.Int64
	totalAllocBytes   atomic.Uint64
	totalDeallocBytes atomic.Uint64
	allocCalls        atomic.Uint64
	deallocCalls      atomic.Uint64
	reallocCalls      atomic.Uint64
}

func (c *counterBank) recordAlloc(size int64) {
	c.allocCalls.Add(1)
	c.totalAllocBytes.Add(uint64(size))
	raiseMax(&c.peakLiveBytes, c.liveBytes.Add(size))
}

func (c *counterBank) recordFree(size int64) {
	c.deallocCalls.Add(1)
	c.totalDeallocBytes.Add(uint64(size))
	c.liveBytes.Add(-size)
}

// recordRealloc books the size delta of a reallocation: growth counts as a
// pure allocation of the delta, shrinkage as a pure deallocation. The call
// count moves by exactly one either way, zero delta included.
func (c *counterBank) recordRealloc(oldSize, newSize int64) {
	c.reallocCalls.Add(1)
	if newSize >= oldSize {
		delta := newSize - oldSize
		c.totalAllocBytes.Add(uint64(delta))
		raiseMax(&c.peakLiveBytes, c.liveBytes.Add(delta))
		return
	}
	delta := oldSize - newSize
	c.totalDeallocBytes.Add(uint64(delta))
	c.liveBytes.Add(-delta)
}

// reset zeroes every counter, starting a new observation epoch. Counters
// are zeroed one at a time; resetting while traffic is in flight yields
// mixed-epoch snapshots, so callers should reset only at quiet points.
func (c *counterBank) reset() {
	c.liveBytes.Store(0)
	c.peakLiveBytes.Store(0)
	c.totalAllocBytes.Store(0)
	c.totalDeallocBytes.Store(0)
	c.allocCalls.Store(0)
	c.deallocCalls.Store(0)
	c.reallocCalls.Store(0)
}

func (c *counterBank) snapshot() Snapshot {
	s := Snapshot{
		LiveBytes:         c.liveBytes.Load(),
		PeakLiveBytes:     c.peakLiveBytes.Load(),
		TotalAllocBytes:   c.totalAllocBytes.Load(),
		TotalDeallocBytes: c.totalDeallocBytes.Load(),
		AllocCalls:        c.allocCalls.Load(),
		DeallocCalls:      c.deallocCalls.Load(),
		ReallocCalls:      c.reallocCalls.Load(),
	}
	s.NetBytes = int64(s.TotalAllocBytes - s.TotalDeallocBytes)
	return s
}

// raiseMax lifts *max to at least v. A plain load-compare-store would lose
// updates under concurrent raisers, so the compare-and-swap retries until
// either the published maximum already covers v or the swap lands. The
// published value is never less than any value passed in by any goroutine.
func raiseMax(max *atomic.Int64, v int64) {
	for {
		cur := max.Load()
		if v <= cur {
			return
		}
		if max.CompareAndSwap(cur, v) {
			return
		}
	}
}

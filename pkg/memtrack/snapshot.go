package memtrack

// Snapshot is a point-in-time copy of the allocation counters. Every field
// is read with an independent atomic load, so a snapshot taken during
// concurrent allocator traffic is an approximation rather than a
// transaction: NetBytes may transiently disagree with LiveBytes and may be
// negative under heavy reallocation churn. The one guarantee that survives
// is PeakLiveBytes >= every live-byte value attained since the last reset.
type Snapshot struct {
	// LiveBytes is the bytes currently allocated and not yet freed.
	LiveBytes int64
	// PeakLiveBytes is the highest LiveBytes value observed since the
	// last reset.
	PeakLiveBytes int64
	// TotalAllocBytes and TotalDeallocBytes accumulate monotonically
	// within an epoch.
	TotalAllocBytes   uint64
	TotalDeallocBytes uint64
	AllocCalls        uint64
	DeallocCalls      uint64
	ReallocCalls      uint64
	// NetBytes is TotalAllocBytes - TotalDeallocBytes as a signed value.
	NetBytes int64
}

package memtrack

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingAllocator simulates allocation failure in the underlying allocator.
type failingAllocator struct{}

func (failingAllocator) Allocate(size int) []byte             { return nil }
func (failingAllocator) Reallocate(size int, b []byte) []byte { return nil }
func (failingAllocator) Free(b []byte)                        {}

func TestProfilingAllocator(t *testing.T) {
	t.Run("DisabledByDefault", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		assert.False(t, allocator.IsEnabled())

		buf := allocator.Allocate(128)
		require.NotNil(t, buf)
		allocator.Free(buf)

		assert.Equal(t, Snapshot{}, allocator.Snapshot())
	})

	t.Run("AllocateFreeReallocate", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		allocator.Enable(true)

		big := allocator.Allocate(100)
		require.NotNil(t, big)
		snap := allocator.Snapshot()
		assert.Equal(t, uint64(1), snap.AllocCalls)
		assert.Equal(t, int64(100), snap.LiveBytes)
		assert.Equal(t, int64(100), snap.PeakLiveBytes)

		small := allocator.Allocate(50)
		require.NotNil(t, small)
		snap = allocator.Snapshot()
		assert.Equal(t, int64(150), snap.LiveBytes)
		assert.Equal(t, int64(150), snap.PeakLiveBytes)

		allocator.Free(big)
		snap = allocator.Snapshot()
		assert.Equal(t, int64(50), snap.LiveBytes)
		assert.Equal(t, uint64(1), snap.DeallocCalls)
		// Peak is not lowered by frees.
		assert.Equal(t, int64(150), snap.PeakLiveBytes)

		small = allocator.Reallocate(10, small)
		require.NotNil(t, small)
		snap = allocator.Snapshot()
		assert.Equal(t, int64(10), snap.LiveBytes)
		assert.Equal(t, uint64(1), snap.ReallocCalls)
		assert.Equal(t, int64(150), snap.PeakLiveBytes)
		assert.Equal(t, uint64(2), snap.AllocCalls)
		assert.Equal(t, uint64(150), snap.TotalAllocBytes)
		assert.Equal(t, uint64(140), snap.TotalDeallocBytes)
		assert.Equal(t, int64(10), snap.NetBytes)

		allocator.Free(small)
		snap = allocator.Snapshot()
		assert.Equal(t, int64(0), snap.LiveBytes)
		assert.Equal(t, snap.NetBytes, snap.LiveBytes)
	})

	t.Run("DisabledGateTransparency", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())

		// Same sequence as above with the gate off: memory still works,
		// counters never move.
		big := allocator.Allocate(100)
		require.NotNil(t, big)
		assert.Len(t, big, 100)

		small := allocator.Allocate(50)
		require.NotNil(t, small)

		allocator.Free(big)
		small = allocator.Reallocate(10, small)
		require.NotNil(t, small)
		assert.Len(t, small, 10)
		allocator.Free(small)

		assert.Equal(t, Snapshot{}, allocator.Snapshot())
	})

	t.Run("AllocateZeroed", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		allocator.Enable(true)

		buf := allocator.AllocateZeroed(64)
		require.NotNil(t, buf)
		for i, b := range buf {
			require.Zerof(t, b, "byte %d not zeroed", i)
		}

		snap := allocator.Snapshot()
		assert.Equal(t, uint64(1), snap.AllocCalls)
		assert.Equal(t, int64(64), snap.LiveBytes)

		allocator.Free(buf)
	})

	t.Run("ReallocCallCounting", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		allocator.Enable(true)

		buf := allocator.Allocate(100)
		require.NotNil(t, buf)

		// Grow, shrink, and same-size each count exactly once.
		buf = allocator.Reallocate(200, buf)
		buf = allocator.Reallocate(50, buf)
		buf = allocator.Reallocate(50, buf)
		require.NotNil(t, buf)

		snap := allocator.Snapshot()
		assert.Equal(t, uint64(3), snap.ReallocCalls)
		assert.Equal(t, int64(50), snap.LiveBytes)
		// The grow to 200 raised the peak.
		assert.Equal(t, int64(200), snap.PeakLiveBytes)

		allocator.Free(buf)
	})

	t.Run("FailedAllocationSkipsBookkeeping", func(t *testing.T) {
		allocator := NewProfilingAllocator(failingAllocator{})
		allocator.Enable(true)

		assert.Nil(t, allocator.Allocate(100))
		assert.Nil(t, allocator.AllocateZeroed(100))
		assert.Nil(t, allocator.Reallocate(100, nil))

		assert.Equal(t, Snapshot{}, allocator.Snapshot())
	})

	t.Run("Reset", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		allocator.Enable(true)

		buf := allocator.Allocate(1024)
		require.NotNil(t, buf)
		allocator.Free(buf)
		require.NotEqual(t, Snapshot{}, allocator.Snapshot())

		allocator.Reset()
		assert.Equal(t, Snapshot{}, allocator.Snapshot())
		// The gate is independent of the counters.
		assert.True(t, allocator.IsEnabled())
	})

	t.Run("ConcurrentPairedAllocFree", func(t *testing.T) {
		allocator := NewProfilingAllocator(memory.NewGoAllocator())
		allocator.Enable(true)

		const goroutines = 8
		const callsPerGoroutine = 500
		const allocSize = 256

		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < callsPerGoroutine; i++ {
					buf := allocator.Allocate(allocSize)
					if buf == nil {
						t.Error("allocation failed")
						return
					}
					allocator.Free(buf)
				}
			}()
		}
		wg.Wait()

		total := uint64(goroutines * callsPerGoroutine * allocSize)
		snap := allocator.Snapshot()
		assert.Equal(t, int64(0), snap.LiveBytes)
		assert.Equal(t, total, snap.TotalAllocBytes)
		assert.Equal(t, total, snap.TotalDeallocBytes)
		assert.Equal(t, uint64(goroutines*callsPerGoroutine), snap.AllocCalls)
		assert.Equal(t, uint64(goroutines*callsPerGoroutine), snap.DeallocCalls)
		assert.GreaterOrEqual(t, snap.PeakLiveBytes, int64(allocSize))
		assert.LessOrEqual(t, snap.PeakLiveBytes, int64(goroutines*allocSize))
	})

	t.Run("NilUnderlyingDefaultsToGoAllocator", func(t *testing.T) {
		allocator := NewProfilingAllocator(nil)
		buf := allocator.Allocate(16)
		require.NotNil(t, buf)
		allocator.Free(buf)
	})
}

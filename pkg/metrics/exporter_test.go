package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/memtrack/pkg/memtrack"
)

func fixedSource(snap memtrack.Snapshot) SnapshotSource {
	return func() memtrack.Snapshot { return snap }
}

func TestExporter_Collect(t *testing.T) {
	exporter := NewExporter(fixedSource(memtrack.Snapshot{
		LiveBytes:         10,
		PeakLiveBytes:     150,
		TotalAllocBytes:   150,
		TotalDeallocBytes: 140,
		AllocCalls:        2,
		DeallocCalls:      1,
		ReallocCalls:      1,
		NetBytes:          10,
	}))

	assert.Equal(t, 8, testutil.CollectAndCount(exporter))

	expected := `
# HELP memtrack_live_bytes Bytes currently allocated and not yet freed.
# TYPE memtrack_live_bytes gauge
memtrack_live_bytes 10
# HELP memtrack_peak_live_bytes Highest live-byte value observed since the last reset.
# TYPE memtrack_peak_live_bytes gauge
memtrack_peak_live_bytes 150
# HELP memtrack_alloc_bytes_total Cumulative bytes allocated since the last reset.
# TYPE memtrack_alloc_bytes_total counter
memtrack_alloc_bytes_total 150
`
	err := testutil.CollectAndCompare(exporter, strings.NewReader(expected),
		"memtrack_live_bytes", "memtrack_peak_live_bytes", "memtrack_alloc_bytes_total")
	assert.NoError(t, err)
}

func TestExporter_TracksSource(t *testing.T) {
	var snap memtrack.Snapshot
	exporter := NewExporter(func() memtrack.Snapshot { return snap })

	expected := `
# HELP memtrack_net_bytes Total allocated minus total freed bytes, signed.
# TYPE memtrack_net_bytes gauge
memtrack_net_bytes 0
`
	require.NoError(t, testutil.CollectAndCompare(exporter,
		strings.NewReader(expected), "memtrack_net_bytes"))

	// Transiently negative net bytes are representable.
	snap.NetBytes = -40
	expected = `
# HELP memtrack_net_bytes Total allocated minus total freed bytes, signed.
# TYPE memtrack_net_bytes gauge
memtrack_net_bytes -40
`
	require.NoError(t, testutil.CollectAndCompare(exporter,
		strings.NewReader(expected), "memtrack_net_bytes"))
}

func TestServer(t *testing.T) {
	server := NewServer(":0", "/metrics", nil)

	// Start blocks, so run it in a goroutine.
	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	assert.NoError(t, server.Stop())
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer(":0", "", nil)
	assert.NoError(t, server.Stop())
}

// Package metrics exposes allocation profiler snapshots as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TFMV/memtrack/pkg/memtrack"
)

// SnapshotSource yields the current allocation counters.
type SnapshotSource func() memtrack.Snapshot

// Exporter implements prometheus.Collector over a snapshot source. Each
// scrape takes one snapshot and emits const metrics from it, so scraping
// never touches the allocator hot path.
type Exporter struct {
	source SnapshotSource

	liveBytes         *prometheus.Desc
	peakLiveBytes     *prometheus.Desc
	netBytes          *prometheus.Desc
	totalAllocBytes   *prometheus.Desc
	totalDeallocBytes *prometheus.Desc
	allocCalls        *prometheus.Desc
	deallocCalls      *prometheus.Desc
	reallocCalls      *prometheus.Desc
}

// NewExporter creates an Exporter reading from source. Pass
// memtrack.GetSnapshot to export the process-wide profiler.
func NewExporter(source SnapshotSource) *Exporter {
	return &Exporter{
		source: source,
		liveBytes: prometheus.NewDesc(
			"memtrack_live_bytes",
			"Bytes currently allocated and not yet freed.",
			nil, nil,
		),
		peakLiveBytes: prometheus.NewDesc(
			"memtrack_peak_live_bytes",
			"Highest live-byte value observed since the last reset.",
			nil, nil,
		),
		netBytes: prometheus.NewDesc(
			"memtrack_net_bytes",
			"Total allocated minus total freed bytes, signed.",
			nil, nil,
		),
		totalAllocBytes: prometheus.NewDesc(
			"memtrack_alloc_bytes_total",
			"Cumulative bytes allocated since the last reset.",
			nil, nil,
		),
		totalDeallocBytes: prometheus.NewDesc(
			"memtrack_dealloc_bytes_total",
			"Cumulative bytes freed since the last reset.",
			nil, nil,
		),
		allocCalls: prometheus.NewDesc(
			"memtrack_alloc_calls_total",
			"Number of allocate calls since the last reset.",
			nil, nil,
		),
		deallocCalls: prometheus.NewDesc(
			"memtrack_dealloc_calls_total",
			"Number of deallocate calls since the last reset.",
			nil, nil,
		),
		reallocCalls: prometheus.NewDesc(
			"memtrack_realloc_calls_total",
			"Number of reallocate calls since the last reset.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.liveBytes
	ch <- e.peakLiveBytes
	ch <- e.netBytes
	ch <- e.totalAllocBytes
	ch <- e.totalDeallocBytes
	ch <- e.allocCalls
	ch <- e.deallocCalls
	ch <- e.reallocCalls
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.source()
	ch <- prometheus.MustNewConstMetric(e.liveBytes, prometheus.GaugeValue, float64(snap.LiveBytes))
	ch <- prometheus.MustNewConstMetric(e.peakLiveBytes, prometheus.GaugeValue, float64(snap.PeakLiveBytes))
	ch <- prometheus.MustNewConstMetric(e.netBytes, prometheus.GaugeValue, float64(snap.NetBytes))
	ch <- prometheus.MustNewConstMetric(e.totalAllocBytes, prometheus.CounterValue, float64(snap.TotalAllocBytes))
	ch <- prometheus.MustNewConstMetric(e.totalDeallocBytes, prometheus.CounterValue, float64(snap.TotalDeallocBytes))
	ch <- prometheus.MustNewConstMetric(e.allocCalls, prometheus.CounterValue, float64(snap.AllocCalls))
	ch <- prometheus.MustNewConstMetric(e.deallocCalls, prometheus.CounterValue, float64(snap.DeallocCalls))
	ch <- prometheus.MustNewConstMetric(e.reallocCalls, prometheus.CounterValue, float64(snap.ReallocCalls))
}

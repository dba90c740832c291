package statistics

import (
	"context"
	"runtime"
	"time"

	"github.com/majestrate/bittorrent-tracker/metrics"
)

var (
	metricMemHeapAlloc   = metrics.MetricName(metrics.Sanitize("process_heap_alloc_bytes"))
	metricMemHeapObjects = metrics.MetricName(metrics.Sanitize("process_heap_objects"))
	metricMemSys         = metrics.MetricName(metrics.Sanitize("process_memory_sys_bytes"))
	metricMemNumGC       = metrics.MetricName(metrics.Sanitize("process_num_gc_total"))
	metricMemGoroutines  = metrics.MetricName(metrics.Sanitize("process_goroutines"))
)

// MemStatsWrapper periodically snapshots runtime.MemStats, filling the role
// of the teacher's stats.MemStatsWrapper (referenced from stats.go as
// *MemStatsWrapper but absent from the retrieved file set) rebuilt here
// directly from runtime.MemStats's documented fields.
type MemStatsWrapper struct {
	Verbose bool

	HeapAlloc    uint64
	HeapObjects  uint64
	Sys          uint64
	NumGC        uint32
	NumGoroutine int
}

// NewMemStatsWrapper returns a wrapper with an initial snapshot already
// taken. Verbose selects whether Apply also reports the non-heap Sys gauge,
// mirroring the teacher's StatsConfig.VerboseMem knob.
func NewMemStatsWrapper(verbose bool) *MemStatsWrapper {
	w := &MemStatsWrapper{Verbose: verbose}
	w.Update()
	return w
}

// Update re-reads runtime.MemStats into the wrapper's fields.
func (w *MemStatsWrapper) Update() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	w.HeapAlloc = m.HeapAlloc
	w.HeapObjects = m.HeapObjects
	w.Sys = m.Sys
	w.NumGC = m.NumGC
	w.NumGoroutine = runtime.NumGoroutine()
}

// Apply publishes the wrapper's current snapshot into coll as gauges.
func (w *MemStatsWrapper) Apply(coll *metrics.MetricCollection, now time.Time) {
	coll.SetGauge(metricMemHeapAlloc, metrics.NewLabelSet(), float64(w.HeapAlloc), now)
	coll.SetGauge(metricMemHeapObjects, metrics.NewLabelSet(), float64(w.HeapObjects), now)
	coll.SetGauge(metricMemNumGC, metrics.NewLabelSet(), float64(w.NumGC), now)
	coll.SetGauge(metricMemGoroutines, metrics.NewLabelSet(), float64(w.NumGoroutine), now)
	if w.Verbose {
		coll.SetGauge(metricMemSys, metrics.NewLabelSet(), float64(w.Sys), now)
	}
}

// RunMemStats periodically updates and publishes w into coll until ctx is
// canceled, grounded on the teacher's Stats.recordMemStats ticker channel
// fed by cfg.MemUpdateInterval.
func RunMemStats(ctx context.Context, w *MemStatsWrapper, coll *metrics.MetricCollection, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Update()
			w.Apply(coll, time.Now())
		}
	}
}

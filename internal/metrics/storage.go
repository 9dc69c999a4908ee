package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "memcore"

// Storage Prometheus metrics.
var (
	StorageMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_mutations_total",
			Help:      "Document store mutations by operation and result",
		},
		[]string{"op", "result"}, // op: put/merge, result: ok/error
	)

	SnapshotSaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_save_duration_seconds",
			Help:      "Time spent writing a full snapshot",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend"},
	)

	SnapshotSizeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Size of the last snapshot written",
		},
		[]string{"backend"},
	)

	UnitsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_units",
			Help:      "Knowledge units in the committed document",
		},
	)
)

var registerOnce sync.Once

// Register registers every memcore collector with reg. Call once from main.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			StorageMutationsTotal,
			SnapshotSaveDuration,
			SnapshotSizeBytes,
			UnitsTotal,
		)
	})
}

// RegisterBuildInfo exposes a constant build_info gauge labelled with the
// running version and commit.
func RegisterBuildInfo(reg prometheus.Registerer, version, commit string) {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build metadata of the running binary",
		},
		[]string{"version", "commit"},
	)
	if err := reg.Register(g); err != nil {
		return
	}
	g.WithLabelValues(version, commit).Set(1)
}

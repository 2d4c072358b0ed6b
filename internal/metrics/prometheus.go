// Package metrics wires the controller's Prometheus instrumentation,
// grounded on the teacher's coordinator/internal/metrics/prometheus.go
// (a single Metrics struct of promauto-registered vectors plus Record*
// helper methods), generalized from request/replica metrics to the
// lifecycle-engine and background-worker operations this controller runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the controller registers.
type Metrics struct {
	// Lifecycle engine operations (internal/lifecycle)
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Store/version inventory (gauges updated on a poll, not per-request)
	StoresTotal       *prometheus.GaugeVec
	VersionsTotal     *prometheus.GaugeVec
	CurrentVersion    *prometheus.GaugeVec

	// Store Migration Monitor (internal/migration)
	MigrationsInFlight prometheus.Gauge
	MigrationsCompleted *prometheus.CounterVec

	// Push-status write-back (internal/pushstatus)
	PushStatusWritesTotal  *prometheus.CounterVec
	PushStatusWriteFailures prometheus.Counter

	// Mastership (internal/mastership)
	MastershipHeld *prometheus.GaugeVec

	// Discovery cache (internal/discovery)
	DiscoveryCacheHits   prometheus.Counter
	DiscoveryCacheMisses prometheus.Counter
}

var (
	registerOnce sync.Once
	registered   *Metrics
)

// NewMetrics returns the controller's Prometheus metrics, creating and
// registering them with the default registry on the first call; later
// calls return the same instance, since a collector registers only once.
func NewMetrics() *Metrics {
	registerOnce.Do(func() { registered = newMetrics() })
	return registered
}

func newMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venice_controller_operations_total",
				Help: "Total number of lifecycle engine operations processed",
			},
			[]string{"operation", "cluster"},
		),

		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "venice_controller_operation_duration_seconds",
				Help:    "Duration of lifecycle engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		OperationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venice_controller_operation_errors_total",
				Help: "Total number of lifecycle engine operation failures",
			},
			[]string{"operation", "error_kind"},
		),

		StoresTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "venice_controller_stores_total",
				Help: "Number of stores known to a managed cluster",
			},
			[]string{"cluster"},
		),

		VersionsTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "venice_controller_versions_total",
				Help: "Number of retained versions for a store",
			},
			[]string{"cluster", "store"},
		),

		CurrentVersion: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "venice_controller_current_version",
				Help: "Current serving version number for a store",
			},
			[]string{"cluster", "store"},
		),

		MigrationsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "venice_controller_migrations_in_flight",
				Help: "Number of cross-cluster store migrations currently in flight",
			},
		),

		MigrationsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venice_controller_migrations_completed_total",
				Help: "Total number of store migrations the monitor has flipped to destination",
			},
			[]string{"dest_cluster"},
		),

		PushStatusWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "venice_controller_push_status_writes_total",
				Help: "Total number of push-status messages written back",
			},
			[]string{"store"},
		),

		PushStatusWriteFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "venice_controller_push_status_write_failures_total",
				Help: "Total number of push-status writes that failed to connect or send",
			},
		),

		MastershipHeld: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "venice_controller_mastership_held",
				Help: "Whether this process holds mastership for a cluster (1) or not (0)",
			},
			[]string{"cluster"},
		),

		DiscoveryCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "venice_controller_discovery_cache_hits_total",
				Help: "Total number of discovery resolutions served from cache",
			},
		),

		DiscoveryCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "venice_controller_discovery_cache_misses_total",
				Help: "Total number of discovery resolutions that fell through to the metadata store",
			},
		),
	}
}

// RecordOperation records a completed lifecycle engine operation.
func (m *Metrics) RecordOperation(operation, cluster string, duration float64) {
	m.OperationsTotal.WithLabelValues(operation, cluster).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordOperationError records a failed lifecycle engine operation.
func (m *Metrics) RecordOperationError(operation, errorKind string) {
	m.OperationErrors.WithLabelValues(operation, errorKind).Inc()
}

// UpdateStoresTotal sets the store count gauge for a cluster.
func (m *Metrics) UpdateStoresTotal(cluster string, count int) {
	m.StoresTotal.WithLabelValues(cluster).Set(float64(count))
}

// UpdateVersionsTotal sets the retained-version-count gauge for a store.
func (m *Metrics) UpdateVersionsTotal(cluster, store string, count int) {
	m.VersionsTotal.WithLabelValues(cluster, store).Set(float64(count))
}

// UpdateCurrentVersion sets the current-serving-version gauge for a store.
func (m *Metrics) UpdateCurrentVersion(cluster, store string, number int) {
	m.CurrentVersion.WithLabelValues(cluster, store).Set(float64(number))
}

// RecordMigrationCompleted records a Store Migration Monitor completion.
func (m *Metrics) RecordMigrationCompleted(destCluster string) {
	m.MigrationsCompleted.WithLabelValues(destCluster).Inc()
}

// RecordPushStatusWrite records a successful push-status write.
func (m *Metrics) RecordPushStatusWrite(store string) {
	m.PushStatusWritesTotal.WithLabelValues(store).Inc()
}

// RecordPushStatusWriteFailure records a failed push-status write.
func (m *Metrics) RecordPushStatusWriteFailure() {
	m.PushStatusWriteFailures.Inc()
}

// SetMastershipHeld records whether this process currently leads cluster.
func (m *Metrics) SetMastershipHeld(cluster string, held bool) {
	v := 0.0
	if held {
		v = 1.0
	}
	m.MastershipHeld.WithLabelValues(cluster).Set(v)
}

// RecordDiscoveryCacheHit records a cache-served discovery resolution.
func (m *Metrics) RecordDiscoveryCacheHit() {
	m.DiscoveryCacheHits.Inc()
}

// RecordDiscoveryCacheMiss records a discovery resolution that fell through
// to the metadata store.
func (m *Metrics) RecordDiscoveryCacheMiss() {
	m.DiscoveryCacheMisses.Inc()
}

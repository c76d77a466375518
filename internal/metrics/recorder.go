package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maxiofs/nasfs/internal/config"
)

const namespace = "nasfs"

// Recorder defines the interface for storage metrics
type Recorder interface {
	// Storage Metrics
	RecordStorageOperation(operation string, success bool, duration time.Duration)
	RecordBytesWritten(bucket string, n int64)

	// NAS Metrics
	UpdateDiskUsage(path string) error

	// Export
	WriteTextfile(path string) error
}

// prometheusRecorder implements the Recorder interface using Prometheus
type prometheusRecorder struct {
	registry *prometheus.Registry

	// Storage Metrics
	storageOperationsTotal   *prometheus.CounterVec
	storageOperationDuration *prometheus.HistogramVec
	storageBytesWritten      *prometheus.CounterVec

	// NAS Metrics
	diskTotalBytes prometheus.Gauge
	diskFreeBytes  prometheus.Gauge
	diskUsedBytes  prometheus.Gauge

	mu sync.Mutex
}

// NewRecorder creates a metrics recorder. A disabled configuration yields a
// recorder that discards everything.
func NewRecorder(cfg config.MetricsConfig) Recorder {
	if !cfg.Enable {
		return &noopRecorder{}
	}

	r := &prometheusRecorder{
		registry: prometheus.NewRegistry(),
	}
	r.initializeMetrics()
	return r
}

// initializeMetrics sets up all Prometheus metrics
func (r *prometheusRecorder) initializeMetrics() {
	r.storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	r.storageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	r.storageBytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "bytes_written_total",
			Help:      "Total number of bytes ingested into the NAS",
		},
		[]string{"bucket"},
	)

	r.diskTotalBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "nas",
		Name:      "disk_total_bytes",
		Help:      "Total size of the filesystem holding the NAS base path",
	})

	r.diskFreeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "nas",
		Name:      "disk_free_bytes",
		Help:      "Free bytes on the filesystem holding the NAS base path",
	})

	r.diskUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "nas",
		Name:      "disk_used_bytes",
		Help:      "Used bytes on the filesystem holding the NAS base path",
	})

	r.registry.MustRegister(
		r.storageOperationsTotal,
		r.storageOperationDuration,
		r.storageBytesWritten,
		r.diskTotalBytes,
		r.diskFreeBytes,
		r.diskUsedBytes,
	)
}

func (r *prometheusRecorder) RecordStorageOperation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.storageOperationsTotal.WithLabelValues(operation, status).Inc()
	r.storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (r *prometheusRecorder) RecordBytesWritten(bucket string, n int64) {
	if n <= 0 {
		return
	}
	r.storageBytesWritten.WithLabelValues(bucket).Add(float64(n))
}

// UpdateDiskUsage refreshes the NAS disk gauges from the filesystem holding path
func (r *prometheusRecorder) UpdateDiskUsage(path string) error {
	stats, err := GetDiskUsage(path)
	if err != nil {
		return err
	}

	r.diskTotalBytes.Set(float64(stats.TotalBytes))
	r.diskFreeBytes.Set(float64(stats.FreeBytes))
	r.diskUsedBytes.Set(float64(stats.UsedBytes))
	return nil
}

// WriteTextfile writes the registry in the Prometheus text format, for the
// node exporter textfile collector. The file is replaced atomically.
func (r *prometheusRecorder) WriteTextfile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// noopRecorder is a no-op implementation when metrics are disabled
type noopRecorder struct{}

func (n *noopRecorder) RecordStorageOperation(operation string, success bool, duration time.Duration) {
}
func (n *noopRecorder) RecordBytesWritten(bucket string, bytes int64) {}
func (n *noopRecorder) UpdateDiskUsage(path string) error             { return nil }
func (n *noopRecorder) WriteTextfile(path string) error               { return nil }

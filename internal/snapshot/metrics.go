package snapshot

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	syserrors "github.com/Dicklesworthstone/sysinfo/internal/errors"
	"github.com/Dicklesworthstone/sysinfo/internal/model"
)

// Metrics records collection telemetry into a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	readerDuration     *prometheus.HistogramVec
	collectionTotal    *prometheus.CounterVec
	collectionDuration prometheus.Histogram
	cpuUsage           *prometheus.GaugeVec
	memoryBytes        *prometheus.GaugeVec
	gpuAdapters        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		readerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sysinfo_reader_duration_seconds",
				Help:    "Time taken by individual readers",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			},
			[]string{"field", "status"},
		),

		collectionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sysinfo_snapshot_total",
				Help: "Total number of snapshot attempts",
			},
			[]string{"status"}, // success or an error code
		),

		collectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sysinfo_snapshot_duration_seconds",
				Help:    "Time taken to collect a complete snapshot",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),

		cpuUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sysinfo_cpu_usage_percent",
				Help: "CPU usage over the sampling interval",
			},
			[]string{"core"}, // "total" or the core index
		),

		memoryBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sysinfo_memory_bytes",
				Help: "Physical memory in bytes",
			},
			[]string{"kind"}, // total or used
		),

		gpuAdapters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sysinfo_gpu_adapters",
				Help: "Number of GPU adapters in the last snapshot",
			},
		),
	}

	m.Registry.MustRegister(
		m.readerDuration,
		m.collectionTotal,
		m.collectionDuration,
		m.cpuUsage,
		m.memoryBytes,
		m.gpuAdapters,
	)
	return m
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return syserrors.WrapWithContext(syserrors.Classify(err), "failed to write metrics textfile", err,
			map[string]any{"path": path})
	}
	return nil
}

func (m *Metrics) observeReader(field model.Field, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = string(syserrors.CodeOf(err))
	}
	m.readerDuration.WithLabelValues(string(field), status).Observe(elapsed.Seconds())
}

// observeSnapshot records one attempt. snap is nil on failure.
func (m *Metrics) observeSnapshot(snap *model.Snapshot, elapsed time.Duration, code syserrors.ErrorCode) {
	if m == nil {
		return
	}
	m.collectionDuration.Observe(elapsed.Seconds())
	if snap == nil {
		m.collectionTotal.WithLabelValues(string(code)).Inc()
		return
	}
	m.collectionTotal.WithLabelValues("success").Inc()

	if snap.Available(model.FieldCPUUsage) {
		m.cpuUsage.WithLabelValues("total").Set(snap.Usage.Total)
		for i, pct := range snap.Usage.PerCore {
			m.cpuUsage.WithLabelValues(strconv.Itoa(i)).Set(pct)
		}
	}
	if snap.Available(model.FieldMemory) {
		m.memoryBytes.WithLabelValues("total").Set(float64(snap.Memory.TotalBytes))
		m.memoryBytes.WithLabelValues("used").Set(float64(snap.Memory.UsedBytes))
	}
	if snap.Available(model.FieldGPU) {
		m.gpuAdapters.Set(float64(len(snap.GPUs)))
	}
}

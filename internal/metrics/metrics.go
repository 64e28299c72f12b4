// Package metrics exposes hematite's Prometheus collectors: a per-route
// HTTP request counter and latency histogram, an append fsync latency
// histogram, a gauge for the stream manager's open-file count, and a
// counter for its evictions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hematite"

// Metrics groups every collector hematite registers, each on its own
// registry so a process can run more than one instance in tests without
// colliding on prometheus.DefaultRegisterer.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OpenStreams     prometheus.Gauge
	Evictions       prometheus.Counter
	FsyncDuration   prometheus.Histogram
}

// New builds and registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests processed, partitioned by route and outcome.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, partitioned by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		OpenStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Number of stream logs currently held open by the stream manager.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_evictions_total",
			Help:      "Number of stream logs evicted from the stream manager's cache.",
		}),
		FsyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_fsync_seconds",
			Help:      "Time spent in fsync during Append, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.OpenStreams,
		m.Evictions,
		m.FsyncDuration,
	)
	return m
}

// ObserveRequest records one HTTP request's outcome and latency.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// StreamOpened, StreamClosed, and StreamEvicted satisfy
// streammgr.MetricsSink, letting the stream manager report its open-file
// count without importing this package.
func (m *Metrics) StreamOpened()  { m.OpenStreams.Inc() }
func (m *Metrics) StreamClosed()  { m.OpenStreams.Dec() }
func (m *Metrics) StreamEvicted() { m.Evictions.Inc() }

// ObserveFsync satisfies eventlog.FsyncObserver.
func (m *Metrics) ObserveFsync(d time.Duration) {
	m.FsyncDuration.Observe(d.Seconds())
}

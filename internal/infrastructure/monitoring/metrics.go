package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a hub.
type Metrics struct {
	// Forwarding metrics
	ChunksForwarded *prometheus.CounterVec
	BytesForwarded  *prometheus.CounterVec
	ForwardErrors   *prometheus.CounterVec

	// Lifecycle metrics
	PortsOpen prometheus.Gauge
	Running   prometheus.Gauge
}

// NewMetrics creates a metrics collector registered on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serialhub_chunks_forwarded_total",
				Help: "Total number of chunks forwarded between ports",
			},
			[]string{"source"},
		),
		BytesForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serialhub_bytes_forwarded_total",
				Help: "Total number of bytes forwarded between ports",
			},
			[]string{"source"},
		),
		ForwardErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serialhub_forward_errors_total",
				Help: "Total number of read/write failures in the forwarding loop",
			},
			[]string{"direction"},
		),
		PortsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "serialhub_ports_open",
				Help: "Number of currently open pseudo-terminal endpoints",
			},
		),
		Running: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "serialhub_running",
				Help: "Whether the forwarding loop is running (1) or not (0)",
			},
		),
	}
}

// NewNop creates a metrics collector backed by a throwaway registry. Used as
// the default for hubs constructed without explicit metrics, and in tests.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordChunk records one forwarded chunk originating at source.
func (m *Metrics) RecordChunk(source string, size int) {
	m.ChunksForwarded.WithLabelValues(source).Inc()
	m.BytesForwarded.WithLabelValues(source).Add(float64(size))
}

// RecordError records a forwarding I/O failure. Direction is "read" or
// "write".
func (m *Metrics) RecordError(direction string) {
	m.ForwardErrors.WithLabelValues(direction).Inc()
}

// Serve exposes the default registry on addr under /metrics. It blocks, so
// callers run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

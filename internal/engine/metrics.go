package engine

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	units       prometheus.Histogram
	exports     *prometheus.CounterVec
	exportBytes prometheus.Counter
	triangles   prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickforge",
			Name:      "requests_total",
			Help:      "Handled engine requests by type and result code.",
		}, []string{"type", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brickforge",
			Name:      "request_duration_seconds",
			Help:      "Engine request latency by type.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"type"}),
		units: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brickforge",
			Name:      "request_units",
			Help:      "Units per request.",
			Buckets:   []float64{1, 10, 100, 1000, 5000, 10000},
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickforge",
			Name:      "exports_total",
			Help:      "Written export artifacts by format and degraded flag.",
		}, []string{"format", "degraded"}),
		exportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickforge",
			Name:      "export_bytes_total",
			Help:      "Bytes written to export artifacts.",
		}),
		triangles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brickforge",
			Name:      "export_triangles",
			Help:      "Triangles per export.",
			Buckets:   prometheus.ExponentialBuckets(12, 4, 10),
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.units, m.exports, m.exportBytes, m.triangles)
	return m
}

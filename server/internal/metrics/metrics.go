// Package metrics exposes server-side counters for recorded sessions in the
// Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrstress/hrstress/pkg/rpc"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	recorded *prometheus.CounterVec
	failures *prometheus.CounterVec
	uploads  *prometheus.CounterVec
	live     prometheus.Gauge
}

// New creates and registers the server collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrstress_sessions_recorded_total",
				Help: "Analysed sessions recorded by the server.",
			},
			[]string{"source_kind", "stress_level"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrstress_analysis_failures_total",
				Help: "Sessions that could not be analysed, by reason.",
			},
			[]string{"reason"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrstress_upload_files_total",
				Help: "Files received through POST /api/v1/analyze, by outcome.",
			},
			[]string{"outcome"},
		),
		live: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hrstress_sessions_live",
				Help: "Sources with a session inside the retention window.",
			},
		),
	}
	m.registry.MustRegister(
		m.recorded, m.failures, m.uploads, m.live,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSession counts one recorded snapshot.
func (m *Metrics) ObserveSession(snap *rpc.SessionSnapshot) {
	if snap.Failed() {
		reason := snap.FailureReason
		if reason == "" {
			reason = "unknown"
		}
		m.failures.WithLabelValues(reason).Inc()
		return
	}
	kind := snap.SourceKind
	if kind == "" {
		kind = "unknown"
	}
	m.recorded.WithLabelValues(kind, string(snap.Stress.Level)).Inc()
}

// ObserveUpload counts one uploaded file; ok is false when it failed analysis.
func (m *Metrics) ObserveUpload(ok bool) {
	outcome := "analysed"
	if !ok {
		outcome = "failed"
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// SetLive records the number of live sessions.
func (m *Metrics) SetLive(n int) { m.live.Set(float64(n)) }

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus instrumentation for the streaming
// client plus a small HTTP server serving /metrics and /healthz.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the streaming client.
// Registered on a private registry so multiple clients can coexist in one
// process (and in tests).
type Metrics struct {
	reg *prometheus.Registry

	TicksTotal     prometheus.Counter
	TicksDiscarded prometheus.Counter
	EnvelopesTotal *prometheus.CounterVec // label: channel
	ParseFailures  prometheus.Counter
	FramesDropped  prometheus.Counter
	Reconnects     prometheus.Counter

	Rebuilds      prometheus.Counter
	RebuildErrors prometheus.Counter
	SeriesLength  prometheus.Gauge

	IndicatorComputeDur prometheus.Histogram

	AlertsTotal prometheus.Counter

	// ConnState mirrors model.ConnectionState ordinals.
	ConnState prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_ticks_total",
		Help: "Market ticks received for the active subscription.",
	})
	m.TicksDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_ticks_discarded_total",
		Help: "Ticks dropped for symbol mismatch or missing history.",
	})
	m.EnvelopesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "omnistream_envelopes_total",
		Help: "Inbound envelopes routed, by channel.",
	}, []string{"channel"})
	m.ParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_parse_failures_total",
		Help: "Malformed envelopes dropped by the demultiplexer.",
	})
	m.FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_frames_dropped_total",
		Help: "Raw frames dropped because the event loop backlog was full.",
	})
	m.Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_reconnects_total",
		Help: "Transport reconnect cycles.",
	})
	m.Rebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_rebuilds_total",
		Help: "Full candle series rebuilds from history snapshots.",
	})
	m.RebuildErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_rebuild_errors_total",
		Help: "History snapshots rejected by series validation.",
	})
	m.SeriesLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "omnistream_series_length",
		Help: "Current raw bar series length.",
	})
	m.IndicatorComputeDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "omnistream_indicator_compute_seconds",
		Help:    "Duration of one indicator pipeline run.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs .. ~1.6s
	})
	m.AlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "omnistream_alerts_total",
		Help: "Operator alerts received on the alert channel.",
	})
	m.ConnState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "omnistream_connection_state",
		Help: "Connection state: 0=disconnected 1=connecting 2=connected 3=reconnecting.",
	})

	m.reg.MustRegister(
		m.TicksTotal, m.TicksDiscarded, m.EnvelopesTotal, m.ParseFailures,
		m.FramesDropped, m.Reconnects, m.Rebuilds, m.RebuildErrors, m.SeriesLength,
		m.IndicatorComputeDur, m.AlertsTotal, m.ConnState,
	)
	return m
}

// Registry returns the private registry backing this metric set.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

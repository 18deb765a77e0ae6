// Package telemetry exposes Prometheus metrics for release runs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "image_release"

// Metrics groups the release collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	releases *prometheus.CounterVec
	units    *prometheus.CounterVec
	dropped  prometheus.Counter
	active   prometheus.Gauge
	duration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_total",
			Help:      "Finished releases by terminal status.",
		}, []string{"status"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Processed image units by outcome.",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_dropped_total",
			Help:      "Annotations removed as degenerate after transformation.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "releases_active",
			Help:      "Releases currently running.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "release_duration_seconds",
			Help:      "Wall time of release runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.releases, m.units, m.dropped, m.active, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReleaseStarted marks a run as active.
func (m *Metrics) ReleaseStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

// ReleaseFinished records a terminal status and the run duration.
func (m *Metrics) ReleaseFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.releases.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// Unit records one processed unit; outcome is "generated", "original" or "failed".
func (m *Metrics) Unit(outcome string) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(outcome).Inc()
}

// Dropped adds n degenerate annotations.
func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

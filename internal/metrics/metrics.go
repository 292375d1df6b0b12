// Package metrics exposes prometheus counters for rendering and interactions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Interaction results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Recorder owns the walkthrough metrics and the registry they live on.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	renders      *prometheus.CounterVec
	renderTime   *prometheus.HistogramVec
	interactions *prometheus.CounterVec
	liveFailures *prometheus.CounterVec
	sessions     prometheus.Counter
}

// New creates a Recorder on a fresh registry, so tests and multiple servers
// in one process do not collide on the default registerer.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walkthrough_renders_total",
				Help: "Total number of page renders",
			},
			[]string{"page"},
		),
		renderTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walkthrough_render_duration_seconds",
				Help:    "Duration of page renders",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"page"},
		),
		interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walkthrough_interactions_total",
				Help: "Widget interactions by result",
			},
			[]string{"page", "result"},
		),
		liveFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walkthrough_live_block_failures_total",
				Help: "Live blocks that returned an error or panicked",
			},
			[]string{"page", "block"},
		),
		sessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "walkthrough_sessions_created_total",
				Help: "Sessions created",
			},
		),
	}
	r.registry.MustRegister(r.renders, r.renderTime, r.interactions, r.liveFailures, r.sessions)
	return r
}

// ObserveRender records one completed render.
func (r *Recorder) ObserveRender(page string, d time.Duration) {
	if r == nil {
		return
	}
	r.renders.WithLabelValues(page).Inc()
	r.renderTime.WithLabelValues(page).Observe(d.Seconds())
}

// LiveBlockFailed records a failing live block.
func (r *Recorder) LiveBlockFailed(page, block string) {
	if r == nil {
		return
	}
	r.liveFailures.WithLabelValues(page, block).Inc()
}

// Interaction records a widget interaction outcome.
func (r *Recorder) Interaction(page, result string) {
	if r == nil {
		return
	}
	r.interactions.WithLabelValues(page, result).Inc()
}

// SessionCreated records a new session.
func (r *Recorder) SessionCreated() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

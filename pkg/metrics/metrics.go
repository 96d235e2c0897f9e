// Package metrics records resolution metrics in Prometheus form.
//
// A nil *Recorder is valid and records nothing, so components take one unconditionally.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fidematch"

// Lookup outcomes.
const (
	OutcomeFound = "found"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Recorder holds the resolution metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	lookups         *prometheus.CounterVec
	matchCache      *prometheus.CounterVec
	rows            *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	markupCache     *prometheus.GaugeVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		lookups: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Registry lookups by search strategy and outcome",
		}, []string{"strategy", "outcome"}),
		matchCache: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_cache_total",
			Help:      "Match cache lookups by result",
		}, []string{"result"}),
		rows: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Roster rows resolved by provenance and accuracy",
		}, []string{"provenance", "accurate"}),
		resolveDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time to resolve one name pair",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		markupCache: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markup_cache_requests",
			Help:      "Registry markup cache hits and misses for this process",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Lookup records one registry lookup.
func (r *Recorder) Lookup(strategy, outcome string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(strategy, outcome).Inc()
}

// MatchCache records a match cache hit or miss.
func (r *Recorder) MatchCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.matchCache.WithLabelValues(result).Inc()
}

// Row records one resolved row.
func (r *Recorder) Row(provenance string, accurate bool) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(provenance, strconv.FormatBool(accurate)).Inc()
}

// ResolveDuration records the time taken by one resolution.
func (r *Recorder) ResolveDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.resolveDuration.Observe(d.Seconds())
}

// MarkupCache sets the markup cache hit and miss counts.
func (r *Recorder) MarkupCache(hits, misses int64) {
	if r == nil {
		return
	}
	r.markupCache.WithLabelValues("hit").Set(float64(hits))
	r.markupCache.WithLabelValues("miss").Set(float64(misses))
}

// WriteTextfile writes all metrics to path in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

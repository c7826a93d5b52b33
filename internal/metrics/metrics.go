// Package metrics exposes Prometheus counters for pricing downloads and
// rate-code lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ratecode"

// Recorder holds the collectors of one process. A nil *Recorder records
// nothing, so callers never need to check.
type Recorder struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	stale          *prometheus.CounterVec
}

// New registers the collectors, plus the Go and process collectors, on a
// private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetches_total",
			Help:      "Count of pricing data downloads by kind and status",
		}, []string{"kind", "status"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of pricing data downloads by kind",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"kind"}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "lookups_total",
			Help:      "Count of rate code lookups by outcome",
		}, []string{"outcome"}),
		lookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of rate code resolution against a loaded document",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "stale_responses_discarded_total",
			Help:      "Count of downloads discarded because the selection changed",
		}, []string{"kind"}),
	}
}

// ObserveFetch records one download.
func (r *Recorder) ObserveFetch(kind string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetches.WithLabelValues(kind, status).Inc()
	r.fetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveLookup records one rate-code resolution.
func (r *Recorder) ObserveLookup(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(outcome).Inc()
	r.lookupDuration.Observe(elapsed.Seconds())
}

// ObserveStaleResponse records a discarded download.
func (r *Recorder) ObserveStaleResponse(kind string) {
	if r == nil {
		return
	}
	r.stale.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the forecast service metrics and the registry they live in.
type Recorder struct {
	registry *prometheus.Registry

	gateChecks       *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a recorder backed by a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		gateChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investanalytics_gate_checks_total",
				Help: "Freshness gate decisions by state",
			},
			[]string{"state"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investanalytics_refreshes_total",
				Help: "Refresh pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		providerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investanalytics_provider_failures_total",
				Help: "Aggregation channels that degraded to empty",
			},
			[]string{"channel"},
		),
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "investanalytics_stage_duration_seconds",
				Help:    "Duration of refresh pipeline stages",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investanalytics_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "investanalytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// RecordGate counts a freshness decision (fresh, stale, absent, bypass)
func (r *Recorder) RecordGate(state string) {
	r.gateChecks.WithLabelValues(state).Inc()
}

// RecordRefresh counts a pipeline run; outcome is "ok" or an error kind
func (r *Recorder) RecordRefresh(outcome string) {
	r.refreshes.WithLabelValues(outcome).Inc()
}

// RecordProviderFailure counts a degraded aggregation channel
func (r *Recorder) RecordProviderFailure(channel string) {
	r.providerFailures.WithLabelValues(channel).Inc()
}

// ObserveStage records how long a pipeline stage took
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveHTTP records one served request
func (r *Recorder) ObserveHTTP(route, method, status string, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Package metrics exposes Prometheus metrics for the scoring pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pipeline's Prometheus metrics.
type Collector struct {
	ClassificationsTotal     *prometheus.CounterVec
	ClassificationDuration   *prometheus.HistogramVec
	TrustRecalculationsTotal *prometheus.CounterVec
	TrustScoreDistribution   prometheus.Histogram
	VotesTotal               *prometheus.CounterVec
	WorkflowTransitionsTotal *prometheus.CounterVec
	AlertsRaisedTotal        *prometheus.CounterVec
	ExternalServiceFailures  prometheus.Counter
	HTTPRequestsTotal        *prometheus.CounterVec
	HTTPRequestDuration      *prometheus.HistogramVec
}

// NewCollector creates the pipeline metrics on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith creates and registers the pipeline metrics with reg.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		ClassificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_classifications_total",
			Help: "Total classifications by component and outcome",
		}, []string{"component", "outcome"}),

		ClassificationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustlens_classification_duration_seconds",
			Help:    "Classification latency by component",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),

		TrustRecalculationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_trust_recalculations_total",
			Help: "Trust score recalculations by result",
		}, []string{"result"}),

		TrustScoreDistribution: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustlens_trust_score",
			Help:    "Distribution of computed trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		VotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_votes_total",
			Help: "Community vote submissions by result",
		}, []string{"result"}),

		WorkflowTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_workflow_transitions_total",
			Help: "Workflow stage transitions",
		}, []string{"stage"}),

		AlertsRaisedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_alerts_raised_total",
			Help: "Alerts raised by type and severity",
		}, []string{"type", "severity"}),

		ExternalServiceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustlens_external_service_failures_total",
			Help: "Failed best-effort external classification calls",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustlens_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustlens_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveClassification records one classification outcome with latency.
func (c *Collector) ObserveClassification(component, outcome string, start time.Time) {
	c.ClassificationsTotal.WithLabelValues(component, outcome).Inc()
	c.ClassificationDuration.WithLabelValues(component).Observe(time.Since(start).Seconds())
}

// statusRecorder captures the response status for the request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and latency per route template.
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		c.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes request latency per route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// DeliveriesTotal counts webhook deliveries by receiver outcome.
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_deliveries_total",
			Help: "Total number of webhook deliveries by outcome status",
		},
		[]string{"status"},
	)

	// DecisionRequestsTotal counts decision-service calls by outcome.
	DecisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_requests_total",
			Help: "Total number of decision-service requests",
		},
		[]string{"outcome"},
	)
	// DecisionRequestDuration observes decision-service call latency.
	DecisionRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decision_request_duration_seconds",
			Help:    "Decision-service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	// DecisionPromptTokens observes prompt sizes sent to the decision service.
	DecisionPromptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decision_prompt_tokens",
			Help:    "Token count of prompts sent to the decision service",
			Buckets: []float64{128, 256, 512, 1024, 2048, 4096, 8192},
		},
	)

	// DedupCacheOps counts dedup cache lookups by result (hit/miss).
	DedupCacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_cache_lookups_total",
			Help: "Total dedup cache lookups by result",
		},
		[]string{"result"},
	)

	// CRMWritebacksTotal counts CRM write-back attempts by result.
	CRMWritebacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_writebacks_total",
			Help: "Total CRM write-back attempts by result",
		},
		[]string{"result"},
	)
)

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	initMetricsOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			DeliveriesTotal,
			DecisionRequestsTotal,
			DecisionRequestDuration,
			DecisionPromptTokens,
			DedupCacheOps,
			CRMWritebacksTotal,
		)
	})
}

// HTTPMetricsMiddleware records request counts and durations per route.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

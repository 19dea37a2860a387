package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eigenx_payouts_build_info",
			Help: "Build information of the payout server",
		},
		[]string{"version", "commit"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eigenx_payouts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eigenx_payouts_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eigenx_payouts_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Snapshot task metrics
	SnapshotTasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eigenx_payouts_snapshot_tasks_created_total",
			Help: "Total number of snapshot tasks accepted",
		},
		[]string{"chain_id"},
	)

	SnapshotTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eigenx_payouts_snapshot_tasks_completed_total",
			Help: "Total number of snapshot tasks that reached a terminal state",
		},
		[]string{"chain_id", "status", "error_code"},
	)

	SnapshotTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eigenx_payouts_snapshot_task_duration_seconds",
			Help:    "Wall time of the snapshot pipeline",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
		},
		[]string{"status"},
	)

	SnapshotQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eigenx_payouts_snapshot_queue_depth",
			Help: "Number of snapshot tasks waiting for a worker",
		},
	)

	SnapshotTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eigenx_payouts_snapshot_tasks_in_flight",
			Help: "Number of snapshot tasks being processed",
		},
	)

	SnapshotHolders = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eigenx_payouts_snapshot_holders",
			Help:    "Number of holder leaves per successful snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~262k
		},
	)

	// Chain RPC metrics
	ChainQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eigenx_payouts_chain_queries_total",
			Help: "Total number of chain RPC queries",
		},
		[]string{"chain_id", "method", "status"},
	)

	TreeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eigenx_payouts_tree_cache_lookups_total",
			Help: "Merkle tree cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordTaskCompleted records a snapshot task reaching a terminal state
func RecordTaskCompleted(chainId uint64, status string, errorCode string, duration time.Duration) {
	SnapshotTasksCompleted.WithLabelValues(strconv.FormatUint(chainId, 10), status, errorCode).Inc()
	SnapshotTaskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordChainQuery records one chain RPC round trip
func RecordChainQuery(chainId uint64, method string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ChainQueriesTotal.WithLabelValues(strconv.FormatUint(chainId, 10), method, status).Inc()
}

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
			Name: "lprewards_build_info",
			Help: "Build information of the LP rewards server",
		},
		[]string{"version", "commit", "date"},
	)

	ViewRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_view_refresh_total",
			Help: "Total number of reward view refreshes",
		},
		[]string{"view_type", "status"},
	)

	ViewRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lprewards_view_refresh_duration_seconds",
			Help:    "Duration of reward view refreshes",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~410s
		},
		[]string{"view_type"},
	)

	IntervalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_intervals_total",
			Help: "Total number of snapshot intervals processed",
		},
		[]string{"status"}, // "merged", "skipped", "error"
	)

	IntervalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lprewards_interval_duration_seconds",
			Help:    "Duration of one interval fetch and allocation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~205s
		},
	)

	RewardAmount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lprewards_last_pass_amount",
			Help: "Token amounts of the last completed pass, as float approximations",
		},
		[]string{"kind"}, // "budget", "credited", "dust", "unclaimed"
	)

	RewardUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lprewards_last_pass_users",
			Help: "Number of addresses in the last completed pass",
		},
	)

	SubgraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_subgraph_requests_total",
			Help: "Total number of subgraph queries",
		},
		[]string{"operation", "status"},
	)

	SubgraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lprewards_subgraph_request_duration_seconds",
			Help:    "Duration of subgraph queries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"operation"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lprewards_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lprewards_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	ClickHouseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_clickhouse_queries_total",
			Help: "Total number of ClickHouse audit writes",
		},
		[]string{"status"},
	)

	ClickHouseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lprewards_clickhouse_query_duration_seconds",
			Help:    "Duration of ClickHouse audit writes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4.1s
		},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lprewards_publish_total",
			Help: "Total number of reward table exports",
		},
		[]string{"target", "status"},
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

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordClickHouseQuery records metrics for a ClickHouse write.
func RecordClickHouseQuery(duration time.Duration, err error) {
	ClickHouseQueriesTotal.WithLabelValues(status(err)).Inc()
	ClickHouseQueryDuration.Observe(duration.Seconds())
}

// RecordSubgraphRequest records metrics for one subgraph query.
func RecordSubgraphRequest(operation string, duration time.Duration, err error) {
	SubgraphRequestsTotal.WithLabelValues(operation, status(err)).Inc()
	SubgraphRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPublish records the outcome of one export.
func RecordPublish(target string, err error) {
	PublishTotal.WithLabelValues(target, status(err)).Inc()
}

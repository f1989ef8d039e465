package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the loader.
var Metrics = struct {
	APIRequestsTotal *prometheus.CounterVec
	QuotaFailures    prometheus.Counter
	ItemsSkipped     *prometheus.CounterVec
	RecordsStaged    *prometheus.CounterVec
	RowsLoaded       *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	NodeDuration     *prometheus.HistogramVec
	RequestDuration  *prometheus.HistogramVec
	DBPoolActive     prometheus.GaugeFunc
	DBPoolIdle       prometheus.GaugeFunc
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	Metrics.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytloader_api_requests_total",
			Help: "YouTube Data API calls, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	Metrics.QuotaFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ytloader_quota_failures_total",
			Help: "Runs aborted because the API key's daily quota was exhausted.",
		},
	)

	Metrics.ItemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytloader_items_skipped_total",
			Help: "Per-item fetch casualties, by reason (not_found, malformed).",
		},
		[]string{"reason"},
	)

	Metrics.RecordsStaged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytloader_records_staged_total",
			Help: "Draft records written to staging, by stage.",
		},
		[]string{"stage"},
	)

	Metrics.RowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytloader_rows_loaded_total",
			Help: "Warehouse load outcomes, by table and action.",
		},
		[]string{"table", "action"},
	)

	Metrics.RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ytloader_run_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	Metrics.NodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytloader_node_duration_seconds",
			Help:    "Duration of individual pipeline nodes.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"node", "status"},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ytloader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// DB pool gauges — read live stats from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ytloader_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ytloader_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.APIRequestsTotal,
		Metrics.QuotaFailures,
		Metrics.ItemsSkipped,
		Metrics.RecordsStaged,
		Metrics.RowsLoaded,
		Metrics.RunDuration,
		Metrics.NodeDuration,
		Metrics.RequestDuration,
	)
}

// MetricsMiddleware records request duration for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))

		start := time.Now()
		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(path, method, status).Observe(duration)
		return err
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}

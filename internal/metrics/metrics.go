package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Container engine call metrics
	engineCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_call_duration_seconds",
			Help:    "Container engine call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"operation", "status"},
	)

	// Rate limiting metrics
	rateLimitDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_dropped_total",
			Help: "Total number of requests dropped due to rate limiting",
		},
		[]string{"key_type"}, // user or unprovisioned
	)

	// Idempotency metrics
	idempotencyHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Total number of idempotency hits",
		},
		[]string{"type"}, // hit or miss
	)

	// Auth metrics
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected requests at the auth layer",
		},
		[]string{"reason"}, // unauthenticated or forbidden
	)

	// Redis metrics
	redisOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"}, // get/set/del, success/failure
	)

	redisOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"operation"},
	)
)

// Init initializes the metrics
func Init() error {
	// Register metrics
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		engineCallDuration,
		rateLimitDroppedTotal,
		idempotencyHitsTotal,
		authFailuresTotal,
		redisOperationsTotal,
		redisOperationDuration,
	)

	return nil
}

// HTTPMetricsMiddleware records HTTP metrics
func HTTPMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)

		return err
	}
}

// RecordEngineCall records metrics for container engine calls
func RecordEngineCall(operation, status string, duration time.Duration) {
	engineCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordRateLimitDrop records rate limit drops
func RecordRateLimitDrop(keyType string) {
	rateLimitDroppedTotal.WithLabelValues(keyType).Inc()
}

// RecordIdempotencyHit records idempotency cache hits/misses
func RecordIdempotencyHit(hitType string) {
	idempotencyHitsTotal.WithLabelValues(hitType).Inc()
}

// RecordAuthFailure records requests rejected by the auth layer
func RecordAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordRedisOperation records Redis operations
func RecordRedisOperation(operation, status string, duration time.Duration) {
	redisOperationsTotal.WithLabelValues(operation, status).Inc()
	redisOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

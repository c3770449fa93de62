package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// Diagnostics HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed by the diagnostics server",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nearsync",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Diagnostics HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "path"})

	// Live channel metrics
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "live",
		Name:      "state_transitions_total",
		Help:      "Connection state machine transitions",
	}, []string{"from", "to"})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "live",
		Name:      "reconnect_attempts_total",
		Help:      "Reconnect attempts after unexpected channel closures",
	})

	FallbackActivations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "live",
		Name:      "fallback_activations_total",
		Help:      "Times the session degraded from the live channel to polling",
	})

	WSFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "live",
		Name:      "frames_total",
		Help:      "Inbound live-channel frames by tag",
	}, []string{"type"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nearsync",
		Subsystem: "live",
		Name:      "poll_duration_seconds",
		Help:      "Duration of fallback position polls",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// POI cache metrics
	POIFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "poi",
		Name:      "fetches_total",
		Help:      "Viewport POI lookups by source (memory, l2, upstream, synthetic)",
	}, []string{"source"})

	// Notification metrics
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "notifications",
		Name:      "processed_total",
		Help:      "Notifications processed by outcome (added, duplicate)",
	}, []string{"result"})

	PromotionPages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nearsync",
		Subsystem: "notifications",
		Name:      "promotion_pages_total",
		Help:      "Successfully loaded promotion history pages",
	})
)

// Middleware records request metrics for the diagnostics server.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

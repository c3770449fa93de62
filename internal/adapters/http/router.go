package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/nearyou/nearsync/internal/pkg/metrics"
)

// SetupRoutes registers the diagnostics surface. It is internal and
// unauthenticated: state inspection, notification access for the UI, and
// Prometheus scraping.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Health & readiness
	app.Get("/healthz", HealthHandler(deps))
	app.Get("/readyz", ReadyHandler(deps))

	// Engine state
	app.Get("/statusz", StatusHandler(deps))
	app.Get("/route", RouteHandler(deps))

	// Notification access for the UI shell
	app.Get("/notifications", NotificationsHandler(deps))
	app.Post("/notifications/load", LoadMoreHandler(deps))
	app.Delete("/route", ClearRouteHandler(deps))
}

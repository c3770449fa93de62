package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nearyou/nearsync/internal/core/usecases"
	"github.com/nearyou/nearsync/internal/pkg/geospatial"
)

// StatusHandler reports the engine state for UI banners and operators.
func StatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.Map{
			"connection":      deps.Live.State().String(),
			"route_points":    len(deps.Tracker.Route()),
			"route_km":        deps.Tracker.RouteDistanceKm(),
			"pois_known":      deps.POIs.Count(),
			"pois_synthetic":  deps.POIs.SyntheticCount(),
			"notifications":   deps.Notifications.Len(),
			"promotion_pages": deps.Notifications.Cursor(),
		}
		if pos, ok := deps.Tracker.CurrentPosition(); ok {
			status["position"] = pos
		}

		// Auxiliary dashboard data; absence degrades the response, not the
		// status code.
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		if profile, err := deps.Profile.Profile(ctx); err == nil {
			status["profile"] = profile
		}
		if stats, err := deps.Profile.Stats(ctx); err == nil {
			status["stats"] = stats
		}

		return c.JSON(status)
	}
}

// RouteHandler returns the session route and its cumulative distance.
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route := deps.Tracker.Route()
		points := make([][2]float64, len(route))
		for i, p := range route {
			points[i] = [2]float64{p.Lat, p.Lon}
		}
		return c.JSON(fiber.Map{
			"points":      route,
			"distance_km": geospatial.RouteDistanceKm(points),
		})
	}
}

// ClearRouteHandler drops the recorded route.
func ClearRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Tracker.ClearRoute()
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// NotificationsHandler lists the most recent notifications.
func NotificationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return errBadRequest(c, "limit must be a positive integer")
			}
			limit = n
		}
		return c.JSON(fiber.Map{
			"notifications": deps.Notifications.Recent(limit),
			"total":         deps.Notifications.Len(),
		})
	}
}

// LoadMoreHandler pulls the next page of historical promotions into the
// store. A load already in flight is reported as a conflict, not an error.
func LoadMoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		added, hasMore, err := deps.Notifications.LoadMore(c.Context())
		if err != nil {
			if errors.Is(err, usecases.ErrLoadInFlight) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"status": "load already in flight",
				})
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{
			"added":    added,
			"has_more": hasMore,
			"cursor":   deps.Notifications.Cursor(),
		})
	}
}

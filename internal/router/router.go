package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/miprootsaysak/yt-loader/internal/handler"
	"github.com/miprootsaysak/yt-loader/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Health *handler.HealthHandler
	Run    *handler.RunHandler
}

// Setup configures the middleware stack and all routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())

	// Probes and metrics (outside the API group)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// API routes
	api := app.Group("/api")

	// Pipeline runs
	api.Post("/runs", h.Run.Trigger)
	api.Get("/runs/latest", h.Run.Latest)
}

package routes

import (
	"time"

	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, mgr *middleware.Manager, users store.Users, containers store.Containers, eng engine.Engine) {
	// Create route handlers
	authHandler := NewAuthHandler(users, mgr.Tokens, logger)
	rateLimitHandler := NewRateLimitHandler(mgr.Limiter, logger)
	containerHandler := NewContainerHandler(eng, containers, mgr.EngineBreaker, logger)
	imageHandler := NewImageHandler(eng, mgr.EngineBreaker, logger)
	volumeHandler := NewVolumeHandler(eng, mgr.EngineBreaker, logger)
	adminHandler := NewAdminHandler(users, containers, eng, logger)

	// Health check endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(mgr, eng))
	app.Get("/version", versionHandler)

	// Metrics endpoint (no auth required)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())

	// Global request middleware
	app.Use(metrics.HTTPMetricsMiddleware())
	app.Use(mgr.ErrorLogger.Handle())

	// Auth routes (public endpoints - no auth required except logout)
	authRoutes := app.Group("/auth")
	authRoutes.Post("/signup", authHandler.Signup)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/token", authHandler.Login) // form-encoded alias
	authRoutes.Post("/logout", mgr.Auth.Authenticate(), authHandler.Logout)

	// Everything below requires a bearer token. Auth is mounted per group
	// rather than app-wide so unregistered paths still reach the 404 handler.
	bearer := mgr.Auth.Authenticate()
	admin := mgr.Auth.RequireRole(models.RoleAdmin)
	limited := mgr.RateLimit.Handle()

	// Mutating engine calls replay through the idempotency cache when the
	// caller sends an Idempotency-Key
	replay := mgr.Idempotency.Handle()
	capture := mgr.Idempotency.ResponseCapture()

	// Rate limit administration. Reads are self-or-admin, writes admin only.
	rateLimitRoutes := app.Group("/rate-limit", bearer, replay, capture)
	rateLimitRoutes.Get("/:username", rateLimitHandler.Get)
	rateLimitRoutes.Post("/:username/set", admin, rateLimitHandler.Set)
	rateLimitRoutes.Put("/:username/update", admin, rateLimitHandler.Update)

	// Container routes
	containerRoutes := app.Group("/containers", bearer, replay, capture)
	containerRoutes.Post("/", limited, containerHandler.Run)
	containerRoutes.Get("/", admin, containerHandler.List)
	containerRoutes.Post("/:name/start", admin, containerHandler.Start)
	containerRoutes.Post("/:name/stop", admin, containerHandler.Stop)
	containerRoutes.Get("/:name/logs", containerHandler.Logs)
	containerRoutes.Delete("/:name", admin, containerHandler.Remove)

	// Image routes
	imageRoutes := app.Group("/images", bearer, replay, capture)
	imageRoutes.Get("/", imageHandler.List)
	imageRoutes.Post("/pull", limited, imageHandler.Pull)
	imageRoutes.Post("/push", admin, limited, imageHandler.Push)
	imageRoutes.Post("/build", admin, limited, imageHandler.Build)
	imageRoutes.Post("/registry/login", admin, imageHandler.RegistryLogin)
	// Image refs may contain slashes, so the ref is a wildcard segment
	imageRoutes.Delete("/+", admin, imageHandler.Remove)

	// Volume routes
	volumeRoutes := app.Group("/volumes", bearer, replay, capture)
	volumeRoutes.Post("/", limited, volumeHandler.Create)
	volumeRoutes.Delete("/:name", admin, volumeHandler.Remove)

	// Admin routes
	adminRoutes := app.Group("/admin", bearer, admin)
	adminRoutes.Get("/users", adminHandler.ListUsers)
	adminRoutes.Get("/users/:username", adminHandler.GetUser)
	adminRoutes.Delete("/users/:username", adminHandler.DeleteUser)
	adminRoutes.Get("/containers", adminHandler.ListContainers)

	// 404 handler
	app.Use(notFoundHandler)
}

// healthCheck returns the health status of the service
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "management-api",
	})
}

// readinessCheck checks if the service is ready to accept traffic. Both the
// rate limit store and the container engine must answer.
func readinessCheck(mgr *middleware.Manager, eng engine.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		redisHealthCheck := middleware.RedisHealthCheck(mgr.RedisClient, mgr.Logger)
		if err := redisHealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "redis unavailable",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
		}

		if err := eng.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "container engine unavailable",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
		}

		return c.JSON(fiber.Map{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "management-api",
		})
	}
}

// versionHandler returns version information
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "management-api",
		"version": getVersion(),
		"commit":  getCommit(),
		"built":   getBuildTime(),
	})
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     "NOT_FOUND",
			"message":  "The requested resource was not found",
			"path":     c.Path(),
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

// Helper functions for version info
func getVersion() string {
	// This would typically be set during build
	return "dev"
}

func getCommit() string {
	// This would typically be set during build
	return "unknown"
}

func getBuildTime() string {
	// This would typically be set during build
	return "unknown"
}

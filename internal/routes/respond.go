package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/middleware"
)

// executeEngineCall runs an engine call through the breaker inside a span
// and records its latency
func executeEngineCall(c *fiber.Ctx, breaker *middleware.CircuitBreaker, operation string, fn func() error) error {
	ctx, span := middleware.StartSpan(c.Context(), "engine."+operation)
	defer span.End()
	middleware.AddSpanAttributes(span, map[string]interface{}{
		"engine.operation": operation,
		"user.name":        middleware.GetUsername(c),
	})

	start := time.Now()
	err := breaker.Execute(ctx, fn)
	middleware.RecordError(span, err)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordEngineCall(operation, status, time.Since(start))

	return err
}

// errorJSON writes the standard error envelope
func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     code,
			"message":  message,
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusBadRequest, "BAD_REQUEST", message)
}

func internalError(c *fiber.Ctx, message string) error {
	return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// engineError maps a failed engine call to a response. Unknown resources are
// 404, an open breaker is 503, anything else stays an opaque 500.
func engineError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, engine.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", message+": not found")
	}
	if errors.Is(err, middleware.ErrBreakerOpen) {
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "Container engine is unavailable")
	}
	return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", message)
}

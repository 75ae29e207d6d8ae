package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/ratelimit"
)

// RateLimitHandler manages per-user request quotas
type RateLimitHandler struct {
	limiter *ratelimit.Service
	logger  *logrus.Logger
}

// NewRateLimitHandler creates a new rate limit handler
func NewRateLimitHandler(limiter *ratelimit.Service, logger *logrus.Logger) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		logger:  logger,
	}
}

// Get returns the quota record for a user. Users may read their own record;
// reading anyone else's requires the admin role.
func (h *RateLimitHandler) Get(c *fiber.Ctx) error {
	username := c.Params("username")

	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "A valid bearer token is required")
	}
	if identity.Username != username && !identity.IsAdmin() {
		return errorJSON(c, fiber.StatusForbidden, "FORBIDDEN", "You may only read your own rate limit")
	}

	record, err := h.limiter.Get(c.Context(), username)
	if err != nil {
		if errors.Is(err, ratelimit.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "No rate limit record for "+username)
		}
		h.logger.WithError(err).WithField("username", username).Error("Rate limit read failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "Rate limit store is unavailable")
	}

	return c.JSON(record)
}

// Set creates or overwrites a user's quota record, resetting the counter
func (h *RateLimitHandler) Set(c *fiber.Ctx) error {
	username := c.Params("username")

	req, err := parseQuotaBody(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.limiter.Set(c.Context(), username, req.Limit, req.WindowSeconds)
	if err != nil {
		h.logger.WithError(err).WithField("username", username).Error("Rate limit set failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "Rate limit store is unavailable")
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// Update changes limit/window on an existing record. The live count is
// preserved so an update cannot grant a fresh window mid-abuse.
func (h *RateLimitHandler) Update(c *fiber.Ctx) error {
	username := c.Params("username")

	req, err := parseQuotaBody(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.limiter.Update(c.Context(), username, req.Limit, req.WindowSeconds)
	if err != nil {
		if errors.Is(err, ratelimit.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "No rate limit record for "+username)
		}
		h.logger.WithError(err).WithField("username", username).Error("Rate limit update failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "Rate limit store is unavailable")
	}

	return c.JSON(record)
}

func parseQuotaBody(c *fiber.Ctx) (*models.RateLimitRequest, error) {
	var req models.RateLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if req.Limit < 1 {
		return nil, errors.New("limit must be at least 1")
	}
	if req.WindowSeconds < 1 {
		return nil, errors.New("window_seconds must be at least 1")
	}
	return &req, nil
}

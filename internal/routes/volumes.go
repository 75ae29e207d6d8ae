package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
)

// VolumeHandler handles volume endpoints
type VolumeHandler struct {
	engine  engine.Engine
	breaker *middleware.CircuitBreaker
	logger  *logrus.Logger
}

// NewVolumeHandler creates a new volume handler
func NewVolumeHandler(eng engine.Engine, breaker *middleware.CircuitBreaker, logger *logrus.Logger) *VolumeHandler {
	return &VolumeHandler{
		engine:  eng,
		breaker: breaker,
		logger:  logger,
	}
}

// Create creates a named volume
func (h *VolumeHandler) Create(c *fiber.Ctx) error {
	var req models.VolumeCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	var summary *models.VolumeSummary
	err := h.execute(c, "volume_create", func() error {
		var err error
		summary, err = h.engine.CreateVolume(c.Context(), req)
		return err
	})
	if err != nil {
		h.logger.WithError(err).WithField("volume", req.Name).Error("Volume create failed")
		return engineError(c, err, "Failed to create volume "+req.Name)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"volume":   summary.Name,
	}).Info("Volume created")

	return c.Status(fiber.StatusCreated).JSON(summary)
}

// Remove deletes a volume
func (h *VolumeHandler) Remove(c *fiber.Ctx) error {
	name := c.Params("name")
	force := c.QueryBool("force", false)

	err := h.execute(c, "volume_remove", func() error {
		return h.engine.RemoveVolume(c.Context(), name, force)
	})
	if err != nil {
		return engineError(c, err, "Volume "+name)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"volume":   name,
	}).Info("Volume removed")

	return c.JSON(fiber.Map{
		"name":   name,
		"status": "removed",
	})
}

func (h *VolumeHandler) execute(c *fiber.Ctx, operation string, fn func() error) error {
	return executeEngineCall(c, h.breaker, operation, fn)
}

package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/store"
)

// ContainerHandler handles container lifecycle endpoints
type ContainerHandler struct {
	engine     engine.Engine
	containers store.Containers
	breaker    *middleware.CircuitBreaker
	logger     *logrus.Logger
}

// NewContainerHandler creates a new container handler
func NewContainerHandler(eng engine.Engine, containers store.Containers, breaker *middleware.CircuitBreaker, logger *logrus.Logger) *ContainerHandler {
	return &ContainerHandler{
		engine:     eng,
		containers: containers,
		breaker:    breaker,
		logger:     logger,
	}
}

// Run creates and starts a container, then records the ledger entry linking
// it to the acting user. The engine call happens only after every gate has
// admitted the request.
func (h *ContainerHandler) Run(c *fiber.Ctx) error {
	var req models.ContainerRunRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Image == "" {
		return badRequest(c, "image is required")
	}

	username := middleware.GetUsername(c)

	var handle *engine.ContainerHandle
	err := h.execute(c, "container_run", func() error {
		var err error
		handle, err = h.engine.RunContainer(c.Context(), req)
		return err
	})
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"username": username,
			"image":    req.Image,
		}).Error("Container run failed")
		return engineError(c, err, "Failed to run container")
	}

	entry := models.UserContainer{
		Username:      username,
		ContainerName: handle.Name,
		CreatedAt:     time.Now(),
	}
	if err := h.containers.Record(c.Context(), entry); err != nil {
		// The container is already running; losing the ledger entry is
		// logged, not surfaced
		h.logger.WithError(err).WithFields(logrus.Fields{
			"username":  username,
			"container": handle.Name,
		}).Error("Failed to record container ownership")
	}

	h.logger.WithFields(logrus.Fields{
		"username":  username,
		"container": handle.Name,
		"image":     req.Image,
	}).Info("Container started")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     handle.ID,
		"name":   handle.Name,
		"status": handle.Status,
	})
}

// List returns all containers known to the engine
func (h *ContainerHandler) List(c *fiber.Ctx) error {
	all := c.QueryBool("all", true)

	var summaries []models.ContainerSummary
	err := h.execute(c, "container_list", func() error {
		var err error
		summaries, err = h.engine.ListContainers(c.Context(), all)
		return err
	})
	if err != nil {
		h.logger.WithError(err).Error("Container list failed")
		return engineError(c, err, "Failed to list containers")
	}

	return c.JSON(fiber.Map{
		"containers": summaries,
		"count":      len(summaries),
	})
}

// Start starts a stopped container
func (h *ContainerHandler) Start(c *fiber.Ctx) error {
	name := c.Params("name")

	err := h.execute(c, "container_start", func() error {
		return h.engine.StartContainer(c.Context(), name)
	})
	if err != nil {
		return engineError(c, err, "Container "+name)
	}

	h.logger.WithFields(logrus.Fields{
		"username":  middleware.GetUsername(c),
		"container": name,
	}).Info("Container started")

	return c.JSON(fiber.Map{
		"name":   name,
		"status": "started",
	})
}

// Stop stops a running container
func (h *ContainerHandler) Stop(c *fiber.Ctx) error {
	name := c.Params("name")

	var req models.ContainerStopRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	err := h.execute(c, "container_stop", func() error {
		return h.engine.StopContainer(c.Context(), name, req.Timeout)
	})
	if err != nil {
		return engineError(c, err, "Container "+name)
	}

	h.logger.WithFields(logrus.Fields{
		"username":  middleware.GetUsername(c),
		"container": name,
	}).Info("Container stopped")

	return c.JSON(fiber.Map{
		"name":   name,
		"status": "stopped",
	})
}

// Logs returns recent log lines from a container
func (h *ContainerHandler) Logs(c *fiber.Ctx) error {
	name := c.Params("name")
	opts := engine.LogOptions{
		Tail:       c.Query("tail", "100"),
		Timestamps: c.QueryBool("timestamps", false),
		Since:      c.Query("since"),
	}

	var lines []string
	err := h.execute(c, "container_logs", func() error {
		var err error
		lines, err = h.engine.ContainerLogs(c.Context(), name, opts)
		return err
	})
	if err != nil {
		return engineError(c, err, "Container "+name)
	}

	return c.JSON(models.ContainerLogsResponse{
		Container: name,
		Logs:      lines,
	})
}

// Remove deletes a container
func (h *ContainerHandler) Remove(c *fiber.Ctx) error {
	name := c.Params("name")

	var req models.ContainerRemoveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	err := h.execute(c, "container_remove", func() error {
		return h.engine.RemoveContainer(c.Context(), name, req.Force, req.RemoveVolumes)
	})
	if err != nil {
		return engineError(c, err, "Container "+name)
	}

	h.logger.WithFields(logrus.Fields{
		"username":  middleware.GetUsername(c),
		"container": name,
		"force":     req.Force,
	}).Info("Container removed")

	return c.JSON(fiber.Map{
		"name":   name,
		"status": "removed",
	})
}

func (h *ContainerHandler) execute(c *fiber.Ctx, operation string, fn func() error) error {
	return executeEngineCall(c, h.breaker, operation, fn)
}

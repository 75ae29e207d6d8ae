package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
)

// ImageHandler handles image endpoints
type ImageHandler struct {
	engine  engine.Engine
	breaker *middleware.CircuitBreaker
	logger  *logrus.Logger
}

// NewImageHandler creates a new image handler
func NewImageHandler(eng engine.Engine, breaker *middleware.CircuitBreaker, logger *logrus.Logger) *ImageHandler {
	return &ImageHandler{
		engine:  eng,
		breaker: breaker,
		logger:  logger,
	}
}

// List returns images known to the engine
func (h *ImageHandler) List(c *fiber.Ctx) error {
	all := c.QueryBool("all", false)

	var summaries []models.ImageSummary
	err := h.execute(c, "image_list", func() error {
		var err error
		summaries, err = h.engine.ListImages(c.Context(), all)
		return err
	})
	if err != nil {
		h.logger.WithError(err).Error("Image list failed")
		return engineError(c, err, "Failed to list images")
	}

	return c.JSON(fiber.Map{
		"images": summaries,
		"count":  len(summaries),
	})
}

// Pull pulls an image from a registry
func (h *ImageHandler) Pull(c *fiber.Ctx) error {
	var req models.ImagePullRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Repository == "" {
		return badRequest(c, "repository is required")
	}

	ref := req.Repository
	if req.Tag != "" {
		ref += ":" + req.Tag
	}

	err := h.execute(c, "image_pull", func() error {
		return h.engine.PullImage(c.Context(), ref)
	})
	if err != nil {
		h.logger.WithError(err).WithField("ref", ref).Error("Image pull failed")
		return engineError(c, err, "Failed to pull "+ref)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"ref":      ref,
	}).Info("Image pulled")

	return c.JSON(fiber.Map{
		"ref":    ref,
		"status": "pulled",
	})
}

// Push tags a local image under the remote repository and pushes it
func (h *ImageHandler) Push(c *fiber.Ctx) error {
	var req models.ImagePushRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.LocalTag == "" || req.RemoteRepo == "" {
		return badRequest(c, "local_tag and remote_repo are required")
	}

	err := h.execute(c, "image_push", func() error {
		return h.engine.PushImage(c.Context(), req.LocalTag, req.RemoteRepo)
	})
	if err != nil {
		h.logger.WithError(err).WithField("repo", req.RemoteRepo).Error("Image push failed")
		return engineError(c, err, "Failed to push "+req.RemoteRepo)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"repo":     req.RemoteRepo,
	}).Info("Image pushed")

	return c.JSON(fiber.Map{
		"ref":    req.RemoteRepo,
		"status": "pushed",
	})
}

// Build builds an image from a remote build context
func (h *ImageHandler) Build(c *fiber.Ctx) error {
	var req models.ImageBuildRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Tag == "" || req.Remote == "" {
		return badRequest(c, "tag and remote are required")
	}

	err := h.execute(c, "image_build", func() error {
		return h.engine.BuildImage(c.Context(), req)
	})
	if err != nil {
		h.logger.WithError(err).WithField("tag", req.Tag).Error("Image build failed")
		return engineError(c, err, "Failed to build "+req.Tag)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"tag":      req.Tag,
		"remote":   req.Remote,
	}).Info("Image built")

	return c.JSON(fiber.Map{
		"tag":    req.Tag,
		"status": "built",
	})
}

// RegistryLogin authenticates the engine against an image registry. The
// returned credential is held by the engine for later pushes and pulls.
func (h *ImageHandler) RegistryLogin(c *fiber.Ctx) error {
	var req models.RegistryLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}

	var status string
	err := h.execute(c, "registry_login", func() error {
		var err error
		status, err = h.engine.RegistryLogin(c.Context(), req.Username, req.Password, req.ServerAddress)
		return err
	})
	if err != nil {
		h.logger.WithError(err).WithField("registry", req.ServerAddress).Error("Registry login failed")
		return engineError(c, err, "Registry login failed")
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"registry": req.ServerAddress,
	}).Info("Registry login succeeded")

	return c.JSON(fiber.Map{
		"status": status,
	})
}

// Remove deletes an image. The ref is the trailing wildcard so repository
// paths with slashes survive routing.
func (h *ImageHandler) Remove(c *fiber.Ctx) error {
	ref := c.Params("+")
	if ref == "" {
		return badRequest(c, "image reference is required")
	}

	var req models.ImageRemoveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	err := h.execute(c, "image_remove", func() error {
		return h.engine.RemoveImage(c.Context(), ref, req.Force, req.PruneChildren)
	})
	if err != nil {
		return engineError(c, err, "Image "+ref)
	}

	h.logger.WithFields(logrus.Fields{
		"username": middleware.GetUsername(c),
		"ref":      ref,
	}).Info("Image removed")

	return c.JSON(fiber.Map{
		"ref":    ref,
		"status": "removed",
	})
}

func (h *ImageHandler) execute(c *fiber.Ctx, operation string, fn func() error) error {
	return executeEngineCall(c, h.breaker, operation, fn)
}

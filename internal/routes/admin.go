package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dockpilot/management-api/internal/engine"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/store"
)

// AdminHandler handles administrative endpoints. The whole group sits
// behind the admin role guard.
type AdminHandler struct {
	users      store.Users
	containers store.Containers
	engine     engine.Engine
	logger     *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(users store.Users, containers store.Containers, eng engine.Engine, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		users:      users,
		containers: containers,
		engine:     eng,
		logger:     logger,
	}
}

// ListUsers returns all registered accounts
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.List(c.Context())
	if err != nil {
		h.logger.WithError(err).Error("User list failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "User store is unavailable")
	}

	return c.JSON(fiber.Map{
		"users": users,
		"count": len(users),
	})
}

// GetUser returns a single account with the containers it created
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	username := c.Params("username")

	user, err := h.users.Find(c.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "User "+username+" not found")
		}
		h.logger.WithError(err).WithField("username", username).Error("User lookup failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "User store is unavailable")
	}

	owned, err := h.containers.ListByUser(c.Context(), username)
	if err != nil {
		h.logger.WithError(err).WithField("username", username).Error("Container ledger lookup failed")
		owned = nil
	}

	return c.JSON(fiber.Map{
		"user":       user,
		"containers": owned,
	})
}

// DeleteUser removes an account. Containers the user created keep running;
// only the account goes away.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	username := c.Params("username")

	if identity, ok := middleware.GetIdentity(c); ok && identity.Username == username {
		return badRequest(c, "You cannot delete your own account")
	}

	if err := h.users.Delete(c.Context(), username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "User "+username+" not found")
		}
		h.logger.WithError(err).WithField("username", username).Error("User delete failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "User store is unavailable")
	}

	h.logger.WithFields(logrus.Fields{
		"username": username,
		"admin":    middleware.GetUsername(c),
	}).Info("User deleted")

	return c.JSON(fiber.Map{
		"username": username,
		"status":   "deleted",
	})
}

// ListContainers joins the engine's live view with the ownership ledger
func (h *AdminHandler) ListContainers(c *fiber.Ctx) error {
	live, err := h.engine.ListContainers(c.Context(), true)
	if err != nil {
		h.logger.WithError(err).Error("Engine container list failed")
		return engineError(c, err, "Failed to list containers")
	}

	ledger, err := h.containers.ListAll(c.Context())
	if err != nil {
		h.logger.WithError(err).Error("Container ledger list failed")
		return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "Container ledger is unavailable")
	}

	owners := make(map[string]string, len(ledger))
	for _, entry := range ledger {
		owners[entry.ContainerName] = entry.Username
	}

	type ownedContainer struct {
		models.ContainerSummary
		Owner string `json:"owner,omitempty"`
	}

	out := make([]ownedContainer, 0, len(live))
	for _, summary := range live {
		out = append(out, ownedContainer{
			ContainerSummary: summary,
			Owner:            owners[summary.Name],
		})
	}

	return c.JSON(fiber.Map{
		"containers": out,
		"count":      len(out),
	})
}

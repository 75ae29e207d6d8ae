package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/dockpilot/management-api/internal/auth"
	"github.com/dockpilot/management-api/internal/logging"
	"github.com/dockpilot/management-api/internal/middleware"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/store"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users  store.Users
	tokens *auth.TokenService
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users store.Users, tokens *auth.TokenService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Signup registers a new account. The username is the primary key; taking
// one that exists is a conflict, not a validation error.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return badRequest(c, "role must be user or admin")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		return internalError(c, "Failed to process password")
	}

	user := &models.User{
		UserID:       uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(passwordHash),
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := h.users.Insert(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return errorJSON(c, fiber.StatusConflict, "CONFLICT", "Username already exists")
		}
		h.logger.WithError(err).WithField("username", req.Username).Error("Failed to create user")
		return internalError(c, "Failed to create user")
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":  user.UserID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("User registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username": user.Username,
		"role":     user.Role,
	})
}

// Login authenticates a user and returns a bearer token. An unknown
// username and a wrong password fail identically. Also mounted at
// /auth/token for form-encoded clients; BodyParser handles both shapes.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.users.Find(c.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.WithError(err).WithField("username", req.Username).Error("User lookup failed")
			return errorJSON(c, fiber.StatusServiceUnavailable, "UNAVAILABLE", "User store is unavailable")
		}
		h.logger.WithField("username", req.Username).Warn("Login for unknown user")
		return invalidCredentials(c)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.WithField("username", req.Username).Warn("Invalid password")
		return invalidCredentials(c)
	}

	token, err := h.tokens.Issue(user.Username, user.Role)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token")
		return internalError(c, "Failed to issue token")
	}

	h.logger.WithFields(logrus.Fields{
		"username": user.Username,
		"role":     user.Role,
	}).Info("User logged in")

	return c.JSON(models.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Username:    user.Username,
		Role:        user.Role,
		ExpiresIn:   int(h.tokens.TTL().Seconds()),
	})
}

// Logout acknowledges the request. Tokens are stateless and expire on
// their own; clients discard theirs.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	logging.WithUsername(h.logger, middleware.GetUsername(c)).Info("User logged out")
	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}

func invalidCredentials(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "Invalid username or password")
}

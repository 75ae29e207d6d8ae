package middleware

import (
	"strings"

	"github.com/dockpilot/management-api/internal/auth"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const identityKey = "identity"

type AuthMiddleware struct {
	tokens *auth.TokenService
	logger *logrus.Logger
}

func NewAuthMiddleware(tokens *auth.TokenService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// Authenticate verifies the bearer token on each request and stores the
// decoded identity for downstream handlers. A missing header, a wrong
// scheme and an invalid or expired token all fail identically so the
// response never reveals which check failed.
func (a *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return a.unauthorized(c)
		}

		tokenString := authHeader[len(bearerPrefix):]
		if tokenString == "" {
			return a.unauthorized(c)
		}

		identity, err := a.tokens.Verify(tokenString)
		if err != nil {
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Token verification failed")
			return a.unauthorized(c)
		}

		c.Locals(identityKey, *identity)
		return c.Next()
	}
}

// RequireRole admits only identities whose role exactly equals the required
// value. Matching is case-sensitive. Must run after Authenticate.
func (a *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := GetIdentity(c)
		if !ok {
			return a.unauthorized(c)
		}

		if identity.Role != role {
			metrics.RecordAuthFailure("forbidden")
			a.logger.WithFields(logrus.Fields{
				"username": identity.Username,
				"role":     identity.Role,
				"required": role,
				"path":     c.Path(),
			}).Warn("Role check failed")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "FORBIDDEN",
					"message":  "You do not have permission to perform " + c.Method() + " " + c.Path(),
					"trace_id": c.Get("X-Request-ID"),
				},
			})
		}

		return c.Next()
	}
}

func (a *AuthMiddleware) unauthorized(c *fiber.Ctx) error {
	metrics.RecordAuthFailure("unauthenticated")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     "UNAUTHENTICATED",
			"message":  "A valid bearer token is required",
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

// GetIdentity extracts the authenticated identity from the request context
func GetIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(identityKey).(models.Identity)
	return identity, ok
}

// GetUsername extracts the acting username, or "" when unauthenticated
func GetUsername(c *fiber.Ctx) string {
	if identity, ok := GetIdentity(c); ok {
		return identity.Username
	}
	return ""
}

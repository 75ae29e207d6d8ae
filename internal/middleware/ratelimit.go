package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/models"
	"github.com/dockpilot/management-api/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Service
	cfg     *config.RateLimitConfig
	logger  *logrus.Logger
}

func NewRateLimitMiddleware(limiter *ratelimit.Service, cfg *config.RateLimitConfig, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handle consumes one rate-limit unit for the acting user. Must run after
// Authenticate: the quota is keyed by the authenticated username, not the
// request target. A unit is consumed on attempt, not on success, so a
// failed engine call still counts against the window.
func (r *RateLimitMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.cfg.Enabled {
			return c.Next()
		}

		identity, ok := GetIdentity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "UNAUTHENTICATED",
					"message":  "A valid bearer token is required",
					"trace_id": c.Get("X-Request-ID"),
				},
			})
		}

		decision, err := r.limiter.CheckAndConsume(c.Context(), identity.Username)
		if err != nil {
			if errors.Is(err, ratelimit.ErrNotProvisioned) {
				metrics.RecordRateLimitDrop("unprovisioned")
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": fiber.Map{
						"code":     "RATE_LIMITED",
						"message":  "No rate limit provisioned for this account. Ask an administrator to set one.",
						"trace_id": c.Get("X-Request-ID"),
					},
				})
			}

			// Fail closed: a gate that cannot decide must reject, never
			// silently admit
			r.logger.WithError(err).WithField("username", identity.Username).Error("Rate limit check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "UNAVAILABLE",
					"message":  "Rate limit store is unavailable",
					"trace_id": c.Get("X-Request-ID"),
				},
			})
		}

		r.setRateLimitHeaders(c, decision)

		if !decision.Admitted {
			metrics.RecordRateLimitDrop("user")
			r.logger.WithFields(logrus.Fields{
				"username": identity.Username,
				"path":     c.Path(),
				"method":   c.Method(),
				"limit":    decision.Limit,
			}).Warn("Rate limit exceeded")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "RATE_LIMITED",
					"message":  "Rate limit exceeded. Please try again later.",
					"trace_id": c.Get("X-Request-ID"),
				},
				"limit":    decision.Limit,
				"reset_at": decision.ResetAt.Unix(),
			})
		}

		return c.Next()
	}
}

func (r *RateLimitMiddleware) setRateLimitHeaders(c *fiber.Ctx, decision *models.Decision) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

	if !decision.Admitted {
		retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set("Retry-After", strconv.Itoa(retryAfter))
	}
}

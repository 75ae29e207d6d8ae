package middleware

import (
	"fmt"

	"github.com/dockpilot/management-api/internal/auth"
	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/ratelimit"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Manager holds all middleware instances
type Manager struct {
	Auth          *AuthMiddleware
	RateLimit     *RateLimitMiddleware
	Idempotency   *IdempotencyMiddleware
	ErrorLogger   *ErrorLoggerMiddleware
	EngineBreaker *CircuitBreaker
	Tokens        *auth.TokenService
	Limiter       *ratelimit.Service
	RedisClient   *redis.Client
	Config        *config.Config
	Logger        *logrus.Logger
}

// NewManager creates a new middleware manager with all middleware initialized
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	// Initialize Redis client
	redisClient, err := NewRedisClient(&cfg.Redis, &cfg.AWS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	// Initialize token service and authentication middleware
	tokens := auth.NewTokenService([]byte(cfg.JWT.Secret), cfg.JWT.TTL)
	authMiddleware := NewAuthMiddleware(tokens, logger)

	// Initialize per-user quota limiter and its middleware
	limiter := ratelimit.New(redisClient, &cfg.RateLimit, logger)
	rateLimitMiddleware := NewRateLimitMiddleware(limiter, &cfg.RateLimit, logger)

	// Initialize idempotency middleware
	idempotencyMiddleware := NewIdempotencyMiddleware(redisClient, logger)

	return &Manager{
		Auth:          authMiddleware,
		RateLimit:     rateLimitMiddleware,
		Idempotency:   idempotencyMiddleware,
		ErrorLogger:   NewErrorLoggerMiddleware(logger),
		EngineBreaker: NewCircuitBreaker("docker-engine", logger),
		Tokens:        tokens,
		Limiter:       limiter,
		RedisClient:   redisClient,
		Config:        cfg,
		Logger:        logger,
	}, nil
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}

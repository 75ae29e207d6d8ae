package middleware

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/dockpilot/management-api/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient creates the Redis client backing rate limiting and
// idempotency caching
func NewRedisClient(cfg *config.RedisConfig, awsCfg *config.AWSConfig, logger *logrus.Logger) (*redis.Client, error) {
	options := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,

		MinIdleConns:    10,
		MaxIdleConns:    50,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,

		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	}

	// Fetch password from AWS Secrets Manager if enabled
	if cfg.PasswordFromSecrets {
		password, err := getSecretValue(awsCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to get Redis password from secrets: %w", err)
		}
		options.Password = password
		logger.Info("Redis password fetched from AWS Secrets Manager")
	}

	if cfg.TLSEnabled {
		options.TLSConfig = &tls.Config{
			ServerName: extractHostname(cfg.Address),
		}
		logger.WithField("address", cfg.Address).Info("Redis TLS encryption enabled")
	}

	rdb := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"address": cfg.Address,
		"db":      cfg.Database,
	}).Info("Connected to Redis")

	return rdb, nil
}

// RedisHealthCheck returns a probe for the readiness endpoint
func RedisHealthCheck(redisClient redis.UniversalClient, logger *logrus.Logger) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Error("Redis health check failed")
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// getSecretValue fetches the Redis password from AWS Secrets Manager
func getSecretValue(awsCfg *config.AWSConfig, logger *logrus.Logger) (string, error) {
	if awsCfg.SecretName == "" {
		return "", fmt.Errorf("AWS secret name not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(awsCfg.Region),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc := secretsmanager.New(sess)
	result, err := svc.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(awsCfg.SecretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", awsCfg.SecretName)
	}

	logger.WithField("secret_name", awsCfg.SecretName).Debug("Fetched secret from AWS Secrets Manager")
	return strings.TrimSpace(*result.SecretString), nil
}

// extractHostname strips the port from a host:port address for TLS SNI
func extractHostname(address string) string {
	if idx := strings.LastIndex(address, ":"); idx != -1 {
		return address[:idx]
	}
	return address
}

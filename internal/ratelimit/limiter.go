package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dockpilot/management-api/internal/config"
	"github.com/dockpilot/management-api/internal/metrics"
	"github.com/dockpilot/management-api/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned by Get/Update when no record exists
	ErrNotFound = errors.New("rate limit record not found")
	// ErrNotProvisioned is returned by CheckAndConsume under the reject
	// policy when the user has no record yet
	ErrNotProvisioned = errors.New("no rate limit record provisioned")
)

const keyPrefix = "ratelimit:user:"

// checkAndConsumeScript performs the admission check as a single atomic
// read-modify-write per key. Concurrent requests for the same user are
// serialized by Redis script execution, so two requests can never both pass
// a check against a stale count.
const checkAndConsumeScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local default_limit = tonumber(ARGV[2])
local default_window = tonumber(ARGV[3])
local on_missing = ARGV[4]

local rec = redis.call("HMGET", key, "limit", "window_seconds", "count", "window_start")
local limit = tonumber(rec[1])
local window = tonumber(rec[2])
local count = tonumber(rec[3])
local start = tonumber(rec[4])

if not limit then
    if on_missing == "reject" then
        return {-1, 0, 0, 0}
    end
    limit = default_limit
    window = default_window
    count = 0
    start = now
end

if now >= start + window then
    count = 1
    start = now
    redis.call("HSET", key, "limit", limit, "window_seconds", window, "count", count, "window_start", start)
    return {1, limit - count, limit, start + window}
end

if count < limit then
    count = count + 1
    redis.call("HSET", key, "limit", limit, "window_seconds", window, "count", count, "window_start", start)
    return {1, limit - count, limit, start + window}
end

return {0, 0, limit, start + window}
`

// updateScript modifies limit/window on an existing record. The current
// count survives unless the new window is already smaller than the elapsed
// time, in which case the window is treated as expired.
const updateScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

if redis.call("EXISTS", key) == 0 then
    return {-1, 0, 0}
end

local count = tonumber(redis.call("HGET", key, "count")) or 0
local start = tonumber(redis.call("HGET", key, "window_start")) or now

if now >= start + window then
    count = 0
    start = now
end

redis.call("HSET", key, "limit", limit, "window_seconds", window, "count", count, "window_start", start)
return {1, count, start}
`

// Service tracks per-user request budgets over a fixed window. Records are
// owned by Redis; every mutation goes through an atomic Lua script.
type Service struct {
	redisClient redis.UniversalClient
	cfg         *config.RateLimitConfig
	logger      *logrus.Logger
	now         func() time.Time
}

// New creates a rate limit service backed by Redis
func New(redisClient redis.UniversalClient, cfg *config.RateLimitConfig, logger *logrus.Logger) *Service {
	return &Service{
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func recordKey(username string) string {
	return keyPrefix + username
}

func observeRedis(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordRedisOperation(operation, status, time.Since(start))
}

// CheckAndConsume admits or rejects one request for username. A rejection
// leaves the count unchanged; an expired window resets to count=1 and admits
// atomically with the check. Infrastructure errors are returned as-is so the
// caller can fail closed.
func (s *Service) CheckAndConsume(ctx context.Context, username string) (*models.Decision, error) {
	start := time.Now()
	result, err := s.redisClient.Eval(ctx, checkAndConsumeScript,
		[]string{recordKey(username)},
		s.now().Unix(),
		s.cfg.DefaultLimit,
		int(s.cfg.DefaultWindow.Seconds()),
		string(s.cfg.OnMissing),
	).Result()
	observeRedis("ratelimit_check", err, start)
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	admitted, remaining, limit, resetAt, err := parseScriptResult(result)
	if err != nil {
		return nil, err
	}

	if admitted == -1 {
		return nil, ErrNotProvisioned
	}

	return &models.Decision{
		Admitted:  admitted == 1,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   time.Unix(resetAt, 0),
	}, nil
}

// Get returns the current record for username
func (s *Service) Get(ctx context.Context, username string) (*models.RateLimitRecord, error) {
	start := time.Now()
	fields, err := s.redisClient.HGetAll(ctx, recordKey(username)).Result()
	observeRedis("ratelimit_get", err, start)
	if err != nil {
		return nil, fmt.Errorf("rate limit read failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	record := &models.RateLimitRecord{Username: username}
	if _, err := fmt.Sscanf(fields["limit"], "%d", &record.Limit); err != nil {
		return nil, fmt.Errorf("corrupt rate limit record for %s: %w", username, err)
	}
	fmt.Sscanf(fields["window_seconds"], "%d", &record.WindowSeconds)
	fmt.Sscanf(fields["count"], "%d", &record.Count)
	fmt.Sscanf(fields["window_start"], "%d", &record.WindowStart)

	return record, nil
}

// Set creates or fully overwrites the record, resetting the counter
func (s *Service) Set(ctx context.Context, username string, limit, windowSeconds int) (*models.RateLimitRecord, error) {
	now := s.now().Unix()
	start := time.Now()
	err := s.redisClient.HSet(ctx, recordKey(username),
		"limit", limit,
		"window_seconds", windowSeconds,
		"count", 0,
		"window_start", now,
	).Err()
	observeRedis("ratelimit_set", err, start)
	if err != nil {
		return nil, fmt.Errorf("rate limit write failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"limit":    limit,
		"window":   windowSeconds,
	}).Info("Rate limit set")

	return &models.RateLimitRecord{
		Username:      username,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		Count:         0,
		WindowStart:   now,
	}, nil
}

// Update modifies limit/window on an existing record, preserving the live
// count unless the shrunken window has already elapsed
func (s *Service) Update(ctx context.Context, username string, limit, windowSeconds int) (*models.RateLimitRecord, error) {
	start := time.Now()
	result, err := s.redisClient.Eval(ctx, updateScript,
		[]string{recordKey(username)},
		s.now().Unix(),
		limit,
		windowSeconds,
	).Result()
	observeRedis("ratelimit_update", err, start)
	if err != nil {
		return nil, fmt.Errorf("rate limit update failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected update script result: %v", result)
	}

	status, _ := values[0].(int64)
	if status == -1 {
		return nil, ErrNotFound
	}

	count, _ := values[1].(int64)
	windowStart, _ := values[2].(int64)

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"limit":    limit,
		"window":   windowSeconds,
		"count":    count,
	}).Info("Rate limit updated")

	return &models.RateLimitRecord{
		Username:      username,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		Count:         int(count),
		WindowStart:   windowStart,
	}, nil
}

func parseScriptResult(result interface{}) (admitted int64, remaining, limit int, resetAt int64, err error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("unexpected script result format: %v", result)
	}

	admitted, ok = values[0].(int64)
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("failed to parse admission result")
	}

	remainingInt, _ := values[1].(int64)
	limitInt, _ := values[2].(int64)
	resetAt, _ = values[3].(int64)

	return admitted, int(remainingInt), int(limitInt), resetAt, nil
}

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dockpilot/management-api/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg *config.RateLimitConfig) (*Service, *redis.Client) {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	return New(client, cfg, logger), client
}

func defaultCfg() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: 60 * time.Second,
		OnMissing:     config.MissingRecordDefault,
	}
}

func cleanup(t *testing.T, client *redis.Client, usernames ...string) {
	t.Helper()
	ctx := context.Background()
	for _, u := range usernames {
		client.Del(ctx, recordKey(u))
	}
	client.Close()
}

func TestCheckAndConsume_LimitEnforced(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "limit-user")

	ctx := context.Background()
	_, err := svc.Set(ctx, "limit-user", 3, 60)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		decision, err := svc.CheckAndConsume(ctx, "limit-user")
		require.NoError(t, err)
		assert.True(t, decision.Admitted, "request %d should be admitted", i+1)
		assert.Equal(t, 3, decision.Limit)
		assert.Equal(t, 2-i, decision.Remaining)
	}

	decision, err := svc.CheckAndConsume(ctx, "limit-user")
	require.NoError(t, err)
	assert.False(t, decision.Admitted, "fourth request should be rejected")
	assert.Equal(t, 0, decision.Remaining)

	// Rejection leaves the count unchanged
	record, err := svc.Get(ctx, "limit-user")
	require.NoError(t, err)
	assert.Equal(t, 3, record.Count)
}

func TestCheckAndConsume_WindowReset(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "window-user")

	base := time.Now()
	svc.WithClock(func() time.Time { return base })

	ctx := context.Background()
	_, err := svc.Set(ctx, "window-user", 2, 30)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		decision, err := svc.CheckAndConsume(ctx, "window-user")
		require.NoError(t, err)
		assert.True(t, decision.Admitted)
	}

	decision, err := svc.CheckAndConsume(ctx, "window-user")
	require.NoError(t, err)
	assert.False(t, decision.Admitted, "over-limit request inside window must be rejected")

	// Advance past the window: next request admits with a fresh count of 1
	svc.WithClock(func() time.Time { return base.Add(31 * time.Second) })
	decision, err = svc.CheckAndConsume(ctx, "window-user")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)

	record, err := svc.Get(ctx, "window-user")
	require.NoError(t, err)
	assert.Equal(t, 1, record.Count)
}

func TestCheckAndConsume_MissingRecordDefault(t *testing.T) {
	cfg := defaultCfg()
	cfg.DefaultLimit = 2
	svc, client := newTestService(t, cfg)
	defer cleanup(t, client, "fresh-user")

	ctx := context.Background()
	decision, err := svc.CheckAndConsume(ctx, "fresh-user")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 2, decision.Limit)

	// Default record is persisted and visible through Get
	record, err := svc.Get(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Equal(t, 2, record.Limit)
	assert.Equal(t, 1, record.Count)
}

func TestCheckAndConsume_MissingRecordReject(t *testing.T) {
	cfg := defaultCfg()
	cfg.OnMissing = config.MissingRecordReject
	svc, client := newTestService(t, cfg)
	defer cleanup(t, client, "unprovisioned-user")

	ctx := context.Background()
	_, err := svc.CheckAndConsume(ctx, "unprovisioned-user")
	assert.ErrorIs(t, err, ErrNotProvisioned)

	// No record was created as a side effect
	_, err = svc.Get(ctx, "unprovisioned-user")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client)

	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSet_OverwritesAndResets(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "set-user")

	ctx := context.Background()
	_, err := svc.Set(ctx, "set-user", 5, 60)
	require.NoError(t, err)

	_, err = svc.CheckAndConsume(ctx, "set-user")
	require.NoError(t, err)

	record, err := svc.Set(ctx, "set-user", 2, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Count, "set resets the counter")
	assert.Equal(t, 2, record.Limit)
	assert.Equal(t, 30, record.WindowSeconds)
}

func TestUpdate_PreservesCount(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "update-user")

	base := time.Now()
	svc.WithClock(func() time.Time { return base })

	ctx := context.Background()
	_, err := svc.Set(ctx, "update-user", 5, 60)
	require.NoError(t, err)

	_, err = svc.CheckAndConsume(ctx, "update-user")
	require.NoError(t, err)
	_, err = svc.CheckAndConsume(ctx, "update-user")
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return base.Add(5 * time.Second) })
	record, err := svc.Update(ctx, "update-user", 10, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Count, "update preserves the live count")
	assert.Equal(t, 10, record.Limit)
	assert.Equal(t, base.Unix(), record.WindowStart, "update keeps the original window start")
}

func TestUpdate_ShrunkenWindowExpires(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "shrink-user")

	base := time.Now()
	svc.WithClock(func() time.Time { return base })

	ctx := context.Background()
	_, err := svc.Set(ctx, "shrink-user", 5, 300)
	require.NoError(t, err)
	_, err = svc.CheckAndConsume(ctx, "shrink-user")
	require.NoError(t, err)

	// 20s elapse; shrinking the window to 10s puts the record past expiry
	svc.WithClock(func() time.Time { return base.Add(20 * time.Second) })
	record, err := svc.Update(ctx, "shrink-user", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Count)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client)

	_, err := svc.Update(context.Background(), "ghost", 5, 60)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckAndConsume_Concurrent(t *testing.T) {
	svc, client := newTestService(t, defaultCfg())
	defer cleanup(t, client, "concurrent-user")

	ctx := context.Background()
	const limit = 5
	const goroutines = 50

	_, err := svc.Set(ctx, "concurrent-user", limit, 60)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			decision, err := svc.CheckAndConsume(ctx, "concurrent-user")
			if err != nil {
				t.Errorf("request %d: %v", idx, err)
				return
			}
			if decision.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, admitted,
		fmt.Sprintf("exactly %d of %d concurrent requests must be admitted", limit, goroutines))

	record, err := svc.Get(ctx, "concurrent-user")
	require.NoError(t, err)
	assert.Equal(t, limit, record.Count)
}

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "missing addr", mutate: func(c *Config) { c.Addr = "" }, wantErr: true},
		{name: "sentinel without master", mutate: func(c *Config) {
			c.Mode = ModeSentinel
			c.SentinelAddrs = []string{"localhost:26379"}
		}, wantErr: true},
		{name: "sentinel", mutate: func(c *Config) {
			c.Mode = ModeSentinel
			c.SentinelAddrs = []string{"localhost:26379"}
			c.MasterName = "mymaster"
		}},
		{name: "cluster without addrs", mutate: func(c *Config) { c.Mode = ModeCluster }, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "read-write" }, wantErr: true},
		{name: "db out of range", mutate: func(c *Config) { c.DB = 16 }, wantErr: true},
		{name: "idle exceeds pool", mutate: func(c *Config) { c.MinIdleConns = 20 }, wantErr: true},
		{name: "backoff inverted", mutate: func(c *Config) { c.MinRetryBackoff = time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// newTestClient 连接 SIGNAGE_TEST_REDIS_ADDR，不可用时跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("SIGNAGE_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.DB = 15
	cfg.DialTimeout = 500 * time.Millisecond

	client, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockUnlock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "signage:test:lock:" + t.Name()

	token, err := client.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = client.Lock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	assert.ErrorIs(t, client.Unlock(ctx, key, "someone-else"), ErrLockNotHeld)
	require.NoError(t, client.Unlock(ctx, key, token))

	token, err = client.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Unlock(ctx, key, token))
}

func TestExtend(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "signage:test:lock:extend"

	token, err := client.Lock(ctx, key, 300*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = client.Unlock(ctx, key, token) }()

	require.NoError(t, client.Extend(ctx, key, token, 5*time.Second))
	ttl, err := client.Universal().PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Second)

	assert.ErrorIs(t, client.Extend(ctx, key, "someone-else", time.Second), ErrLockNotHeld)
}

func TestTryLockHonoursContext(t *testing.T) {
	client := newTestClient(t)
	key := "signage:test:trylock:" + t.Name()

	token, err := client.Lock(context.Background(), key, 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = client.Unlock(context.Background(), key, token) }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = client.TryLock(ctx, key, time.Second, -1, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishSubscribe(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	channel := "signage:test:channel"
	sub := client.Universal().Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	_, err = client.Publish(ctx, channel, map[string]int64{"location_id": 7})
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"location_id":7}`, msg.Payload)
}

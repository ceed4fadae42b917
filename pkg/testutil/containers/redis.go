//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"attendsync/internal/platform/config"
	platformredis "attendsync/internal/platform/redis"
)

// RedisContainer is a Redis instance reached through the same client
// constructor the reconciliation queue uses in production.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.RedisConfig
	Client    *redis.Client
}

// NewRedisContainer starts Redis and connects to it.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.RedisConfig{URL: url, PoolSize: 4, DialTimeout: 5 * time.Second}
	client, err := platformredis.Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("connect to redis: %v", err)
	}

	return &RedisContainer{
		Container: container,
		Config:    cfg,
		Client:    client,
	}
}

// FlushAll removes all keys so suites sharing the container start clean.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

// QueueLength reports how many entries wait under key.
func (r *RedisContainer) QueueLength(ctx context.Context, key string) (int64, error) {
	return r.Client.LLen(ctx, key).Result()
}

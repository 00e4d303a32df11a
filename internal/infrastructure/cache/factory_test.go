package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestIdempotencyStoreFactory_RedisDisabled(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})
	f.dial = func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
		t.Fatal("redis must not be dialed when disabled")
		return nil, nil
	}

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_FallsBackWhenUnreachable(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "redis", Port: 6379})
	f.dial = unreachable

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_NoFallback(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "redis", Port: 6379},
		WithInMemoryFallback(false),
	)
	f.dial = unreachable

	store, err := f.CreateStore(context.Background())
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIdempotencyStoreFactory_UsesRedisClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	f.dial = func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
		return client, nil
	}

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	redisStore, ok := store.(*RedisIdempotencyStore)
	require.True(t, ok)
	assert.Equal(t, defaultKeyPrefix, redisStore.keyPrefix)
}

func TestRedisIdempotencyStore_WrapsClientErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisIdempotencyStore(client, "test:")
	defer store.Close()

	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim idempotency key")

	_, err = store.IsProcessed(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check idempotency key")

	err = store.Release(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to release idempotency key")
}

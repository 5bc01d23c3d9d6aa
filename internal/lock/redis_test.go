package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs a live redis; set REDIS_ADDR to run
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisLocker(client, 5*time.Second)
	key := "test-" + uuid.NewString()

	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	again, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	again()

	exists, err := client.Exists(context.Background(), keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client := setupRedis(t)
	locker := NewRedisLocker(client, 100*time.Millisecond)
	key := "test-" + uuid.NewString()

	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)

	// the lock expires and another holder takes it
	time.Sleep(200 * time.Millisecond)
	other, err := NewRedisLocker(client, 5*time.Second).Acquire(context.Background(), key)
	require.NoError(t, err)
	defer other()

	release()

	exists, err := client.Exists(context.Background(), keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

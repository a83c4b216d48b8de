package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	_, hit := m.GetCache(ctx, "any-key")
	assert.False(t, hit)

	require.NoError(t, m.SetCache(ctx, "k", []byte("data"), time.Minute))
	require.NoError(t, m.SetCache(ctx, "forever", []byte("x"), 0))

	val, hit := m.GetCache(ctx, "k")
	require.True(t, hit)
	assert.Equal(t, []byte("data"), val)

	// Returned slices do not alias the stored value
	val[0] = 'X'
	val, _ = m.GetCache(ctx, "k")
	assert.Equal(t, []byte("data"), val)

	m.now = func() time.Time { return now.Add(time.Minute) }
	_, hit = m.GetCache(ctx, "k")
	assert.False(t, hit, "entry must expire at its deadline")
	_, hit = m.GetCache(ctx, "forever")
	assert.True(t, hit)

	require.NoError(t, m.DeleteCache(ctx, "forever"))
	assert.Equal(t, 0, m.Len())
}

func getTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use DB 1 for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	return client
}

func TestRedis(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	r := NewRedisFromClient(client, "poiatlas-test:")
	defer r.DeleteCache(ctx, "poi:42")

	_, hit := r.GetCache(ctx, "poi:42")
	assert.False(t, hit)

	require.NoError(t, r.SetCache(ctx, "poi:42", []byte(`{"label":"Sé"}`), time.Minute))
	val, hit := r.GetCache(ctx, "poi:42")
	require.True(t, hit)
	assert.JSONEq(t, `{"label":"Sé"}`, string(val))

	ttl, err := client.TTL(ctx, "poiatlas-test:poi:42").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, r.DeleteCache(ctx, "poi:42"))
	_, hit = r.GetCache(ctx, "poi:42")
	assert.False(t, hit)
}

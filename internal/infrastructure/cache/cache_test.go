package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/cache"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

func newRedis(t *testing.T, opts ...cache.Option) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	c := cache.NewRedisFromClient(client, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory(2, time.Minute)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	require.NoError(t, m.Set(ctx, "c", []byte("3")))

	assert.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")

	v, ok, err := m.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory(8, 20*time.Millisecond)

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	require.Eventually(t, func() bool {
		_, ok, _ := m.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedis(t, cache.WithPrefix("test:"), cache.WithTTL(time.Minute))

	_, ok, err := c.Get(ctx, "turn on the lights")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "turn on the lights", []byte(`{"action":"lights_turn_on"}`)))

	v, ok, err := c.Get(ctx, "turn on the lights")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"action":"lights_turn_on"}`, string(v))

	assert.True(t, mr.Exists("test:turn on the lights"))
	assert.Equal(t, time.Minute, mr.TTL("test:turn on the lights"))
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedis(t, cache.WithTTL(10*time.Second))

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	mr.FastForward(11 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_DefaultPrefix(t *testing.T) {
	c, mr := newRedis(t)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("vehicle:nlp:k"))
	require.NoError(t, c.Ping(context.Background()))
}

func TestRedis_BackendError(t *testing.T) {
	c, mr := newRedis(t)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CacheConfig
		wantErr error
		wantNil bool
	}{
		{name: "default is memory", cfg: config.CacheConfig{Size: 4, TTL: 60}},
		{name: "memory", cfg: config.CacheConfig{Backend: "memory"}},
		{name: "redis", cfg: config.CacheConfig{Backend: "redis", Redis: config.RedisConfig{Address: "localhost:6379"}}},
		{name: "none", cfg: config.CacheConfig{Backend: "none"}, wantErr: cache.ErrDisabled, wantNil: true},
		{name: "unknown", cfg: config.CacheConfig{Backend: "memcached"}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := cache.New(tt.cfg)
			if tt.wantNil {
				assert.Nil(t, c)
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.True(t, errors.Is(err, tt.wantErr))
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
			_ = c.Close()
		})
	}
}

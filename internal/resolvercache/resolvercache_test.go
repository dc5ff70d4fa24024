package resolvercache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_SetAndGet(t *testing.T) {
	c, err := NewLRU(4)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", map[string]any{"a": float64(1)})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestRedis_SetAndGet(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", map[string]any{"a": float64(2)})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(2)}, got)
}

func TestRedis_RespectsTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, time.Second)
	c.Set("k", map[string]any{"a": float64(1)})

	mr.FastForward(2 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

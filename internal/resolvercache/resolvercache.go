// Package resolvercache implements the Resolver's cache backend: a
// go-redis-backed cache when internal/config.ResolverCacheConfig.Addr is
// set, falling back to an in-process hashicorp/golang-lru cache otherwise.
package resolvercache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// LRU is the in-process fallback cache, used when no Redis address is
// configured.
type LRU struct {
	cache *lru.Cache[string, map[string]any]
}

// NewLRU builds an in-process cache with room for entries items.
func NewLRU(entries int) (*LRU, error) {
	c, err := lru.New[string, map[string]any](entries)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

// Get implements resolver.Cache.
func (l *LRU) Get(key string) (map[string]any, bool) {
	return l.cache.Get(key)
}

// Set implements resolver.Cache.
func (l *LRU) Set(key string, value map[string]any) {
	l.cache.Add(key, value)
}

// Redis is the shared cache backend, used when multiple releasectl
// instances must see the same resolved-config cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis-backed cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get implements resolver.Cache. Errors (including cache misses) are
// treated as a miss — the resolver recomputes rather than failing the
// request on a degraded cache.
func (r *Redis) Get(key string) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Set implements resolver.Cache.
func (r *Redis) Set(key string, value map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key, raw, r.ttl).Err()
}

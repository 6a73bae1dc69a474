// Package cache is a typed, instrumented layer over go-cache.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Metrics tracks cache performance.
type Metrics struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// Typed caches values of one type. The zero TTL disables it: Get always
// misses and Set is dropped.
type Typed[T any] struct {
	store  *gocache.Cache
	ttl    time.Duration
	name   string
	logger *zap.Logger

	hits, misses, sets atomic.Int64
}

func New[T any](ttl time.Duration, name string, logger *zap.Logger) *Typed[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Typed[T]{ttl: ttl, name: name, logger: logger}
	if ttl > 0 {
		c.store = gocache.New(ttl, 2*ttl)
	}
	return c
}

func (c *Typed[T]) Get(key string) (T, bool) {
	var zero T
	if c.store == nil {
		c.misses.Add(1)
		return zero, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		c.logger.Debug("Cache miss", zap.String("cache", c.name), zap.String("key", key))
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		c.misses.Add(1)
		c.store.Delete(key)
		return zero, false
	}
	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("cache", c.name), zap.String("key", key))
	return typed, true
}

func (c *Typed[T]) Set(key string, value T) {
	if c.store == nil {
		return
	}
	c.store.SetDefault(key, value)
	c.sets.Add(1)
	c.logger.Debug("Cache set", zap.String("cache", c.name), zap.String("key", key), zap.Duration("ttl", c.ttl))
}

func (c *Typed[T]) Delete(key string) {
	if c.store == nil {
		return
	}
	c.store.Delete(key)
	c.logger.Debug("Cache delete", zap.String("cache", c.name), zap.String("key", key))
}

func (c *Typed[T]) Metrics() Metrics {
	return Metrics{Hits: c.hits.Load(), Misses: c.misses.Load(), Sets: c.sets.Load()}
}

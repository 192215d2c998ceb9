// Package cache provides a small generic in-memory map guarded by a single
// mutex, used by the dispatcher to hold the handle of the job currently
// being driven.
package cache

import (
	"sync"

	"github.com/vodarchiver/archiver/log"
)

type Cache[T interface{}] struct {
	cache map[string]T
	mutex sync.Mutex
}

func New[T interface{}]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]T),
	}
}

func (c *Cache[T]) Remove(vodID, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
	log.Log(vodID, "removing from cache", "key", key)
}

func (c *Cache[T]) Get(key string) T {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	info, ok := c.cache[key]
	if ok {
		return info
	}
	var zero T
	return zero
}

func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = value
}

func (c *Cache[T]) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[T]) UnittestIntrospection() *map[string]T {
	return &c.cache
}

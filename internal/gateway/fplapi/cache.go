package fplapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheItem struct {
	body    []byte
	expires time.Time
}

// ttlCache keeps raw response bodies for a while and collapses concurrent
// misses for the same key into one upstream request.
type ttlCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	group singleflight.Group
	now   func() time.Time
}

func newTTLCache() *ttlCache {
	return &ttlCache{items: make(map[string]cacheItem), now: time.Now}
}

func (c *ttlCache) get(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if ttl > 0 {
		c.mu.Lock()
		item, ok := c.items[key]
		c.mu.Unlock()
		if ok && c.now().Before(item.expires) {
			return item.body, nil
		}
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			c.mu.Lock()
			c.items[key] = cacheItem{body: body, expires: c.now().Add(ttl)}
			c.mu.Unlock()
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *ttlCache) purge() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

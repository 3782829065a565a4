// Package cache holds recently read summary documents in front of the file store.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

// Cache stores documents by key ("{city}-{date}").
// Get returns (doc, true, nil) on a hit and (zero, false, nil) on a miss or expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.Document, bool, error)
	Set(ctx context.Context, key string, doc models.Document, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache is a mutex-protected map with per-entry expiry. Expired entries are dropped on
// access and swept when the map grows past its soft limit.
type InMemoryCache struct {
	mu       sync.Mutex
	data     map[string]cacheEntry
	maxItems int
	now      func() time.Time
}

type cacheEntry struct {
	doc       models.Document
	expiresAt time.Time
}

const defaultMaxItems = 1024

// NewInMemoryCache returns an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data:     make(map[string]cacheEntry),
		maxItems: defaultMaxItems,
		now:      time.Now,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Document{}, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Document{}, false, nil
	}
	return entry.doc, true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, doc models.Document, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.data) >= c.maxItems {
		c.sweepLocked(now)
	}
	c.data[key] = cacheEntry{doc: doc, expiresAt: now.Add(ttl)}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) sweepLocked(now time.Time) {
	for k, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, k)
		}
	}
}

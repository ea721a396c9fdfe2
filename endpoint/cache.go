package endpoint

import (
	"context"
	"sync"
	"time"
)

// Cache is a read-through endpoint lookup cache keyed by url_path and
// short_url. Ingestion resolves every inbound request through it; the
// service invalidates entries explicitly on update and delete.
type Cache struct {
	store Store
	ttl   time.Duration

	mu      sync.RWMutex
	byPath  map[string]cacheEntry
	byShort map[string]cacheEntry
}

type cacheEntry struct {
	ep       *Endpoint
	loadedAt time.Time
}

// NewCache creates a lookup cache over the given store.
// A TTL of 0 disables expiry (entries live until invalidated).
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		byPath:  make(map[string]cacheEntry),
		byShort: make(map[string]cacheEntry),
	}
}

// GetByURLPath returns the endpoint registered at urlPath, from cache when fresh.
func (c *Cache) GetByURLPath(ctx context.Context, urlPath string) (*Endpoint, error) {
	c.mu.RLock()
	if e, ok := c.byPath[urlPath]; ok && !c.expired(e) {
		c.mu.RUnlock()
		return e.ep, nil
	}
	c.mu.RUnlock()

	ep, err := c.store.GetEndpointByURLPath(ctx, urlPath)
	if err != nil {
		return nil, err
	}

	c.put(ep)
	return ep, nil
}

// GetByShortURL returns the endpoint behind shortURL, from cache when fresh.
func (c *Cache) GetByShortURL(ctx context.Context, shortURL string) (*Endpoint, error) {
	c.mu.RLock()
	if e, ok := c.byShort[shortURL]; ok && !c.expired(e) {
		c.mu.RUnlock()
		return e.ep, nil
	}
	c.mu.RUnlock()

	ep, err := c.store.GetEndpointByShortURL(ctx, shortURL)
	if err != nil {
		return nil, err
	}

	c.put(ep)
	return ep, nil
}

// Invalidate drops the cached entries for an endpoint. Call after any
// endpoint mutation.
func (c *Cache) Invalidate(ep *Endpoint) {
	c.InvalidateKeys(ep.URLPath, ep.ShortURL)
}

// InvalidateKeys drops entries by their lookup keys. Updates that rename a
// url_path use this to purge the key the endpoint no longer holds.
func (c *Cache) InvalidateKeys(urlPath, shortURL string) {
	c.mu.Lock()
	delete(c.byPath, urlPath)
	delete(c.byShort, shortURL)
	c.mu.Unlock()
}

// InvalidateAll clears the cache, forcing fresh reads from the store.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.byPath = make(map[string]cacheEntry)
	c.byShort = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *Cache) put(ep *Endpoint) {
	c.mu.Lock()
	e := cacheEntry{ep: ep, loadedAt: time.Now()}
	c.byPath[ep.URLPath] = e
	c.byShort[ep.ShortURL] = e
	c.mu.Unlock()
}

func (c *Cache) expired(e cacheEntry) bool {
	if c.ttl == 0 {
		return false
	}
	return time.Since(e.loadedAt) > c.ttl
}

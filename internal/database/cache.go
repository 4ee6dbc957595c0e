package database

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// AdapterCache keeps connected adapters keyed by DSN so back-to-back
// scheduled runs reuse connection pools instead of reconnecting every fire.
// Idle adapters are evicted after the TTL and closed on eviction.
type AdapterCache struct {
	cache *gocache.Cache
	mu    sync.Mutex

	// newAdapter is swappable for tests.
	newAdapter func(dsn string) (Adapter, error)
}

// NewAdapterCache creates an adapter cache with the given idle TTL.
func NewAdapterCache(ttl time.Duration) *AdapterCache {
	c := gocache.New(ttl, ttl)
	c.OnEvicted(func(_ string, v any) {
		if adapter, ok := v.(Adapter); ok {
			_ = adapter.Close()
		}
	})
	return &AdapterCache{cache: c, newAdapter: NewAdapter}
}

// Get returns a connected adapter for dsn, creating one on first use.
// Creation is serialized so concurrent jobs against the same source share a
// single pool.
func (ac *AdapterCache) Get(ctx context.Context, dsn string) (Adapter, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if v, ok := ac.cache.Get(dsn); ok {
		// Sliding expiration: refresh the TTL on every hit.
		ac.cache.SetDefault(dsn, v)
		return v.(Adapter), nil
	}

	adapter, err := ac.newAdapter(dsn)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	ac.cache.SetDefault(dsn, adapter)
	return adapter, nil
}

// Close evicts and closes all cached adapters. Flush would skip the
// eviction callback, so entries are deleted one by one.
func (ac *AdapterCache) Close() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	for key := range ac.cache.Items() {
		ac.cache.Delete(key)
	}
}

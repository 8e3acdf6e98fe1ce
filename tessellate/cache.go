package tessellate

import (
	"context"
	"math"
	"sync"
)

// LayerCache stores finished layers keyed by the requested tiling
// density. Implementations must be safe for concurrent use.
type LayerCache interface {
	Get(ctx context.Context, key float64) (Layers, bool)
	Put(ctx context.Context, key float64, l Layers)
}

// Cache is an in-memory LayerCache. Entries live for the life of the
// process; concurrent writers for one key are allowed and the last
// write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[float64]Layers
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[float64]Layers)}
}

// Get returns the layers stored under key.
func (c *Cache) Get(_ context.Context, key float64) (Layers, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.entries[normalizeKey(key)]
	return l, ok
}

// Put stores l under key.
func (c *Cache) Put(_ context.Context, key float64, l Layers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeKey(key)] = l
}

// Len returns the number of cached densities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached densities in no particular order.
func (c *Cache) Keys() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

// NaN never compares equal to itself, so it would miss forever.
func normalizeKey(key float64) float64 {
	if math.IsNaN(key) {
		return 0
	}
	return key
}

var shared = NewCache()

// SharedCache returns the process-wide cache used by every scene.
func SharedCache() *Cache { return shared }

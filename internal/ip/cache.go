package ip

import (
	"net/netip"
	"sync"
	"time"
)

// cacheEntry is the last resolved address of one family.
type cacheEntry struct {
	addr       netip.Addr
	lastUpdate time.Time
}

// Cache holds the last resolved address per family for a fixed TTL.
// Both families share one lock; readers never observe a half-written entry.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries [2]cacheEntry
}

// NewCache creates an empty cache whose entries stay fresh for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the freshness window shared by both families.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached address for f if it was set no longer than TTL ago.
func (c *Cache) Get(f Family) (netip.Addr, bool) {
	if !validFamily(f) {
		return netip.Addr{}, false
	}

	c.mu.RLock()
	entry := c.entries[f]
	c.mu.RUnlock()

	if entry.lastUpdate.IsZero() {
		return netip.Addr{}, false
	}
	if c.now().Sub(entry.lastUpdate) > c.ttl {
		return netip.Addr{}, false
	}
	return entry.addr, true
}

// Set stores addr for f and restarts its freshness window.
func (c *Cache) Set(f Family, addr netip.Addr) {
	if !validFamily(f) {
		return
	}

	now := c.now()

	c.mu.Lock()
	c.entries[f] = cacheEntry{addr: addr, lastUpdate: now}
	c.mu.Unlock()
}

func validFamily(f Family) bool {
	return f == IPv4 || f == IPv6
}

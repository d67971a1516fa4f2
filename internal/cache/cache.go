package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nicheradar/nicheradar/pkg/provider"
)

// Operation is the cache TTL class for a query.
type Operation string

const (
	OpChannel Operation = "channel" // channel metadata fetches
	OpSearch  Operation = "search"  // keyword expansions
)

// Default TTLs per operation. Search results age slower than channel
// stats; rate-limit outcomes are held briefly so duplicate callers
// back off instead of hammering the provider.
const (
	DefaultChannelTTL   = time.Hour
	DefaultSearchTTL    = 6 * time.Hour
	DefaultRateLimitTTL = 2 * time.Minute
)

type entry struct {
	value      any
	err        error
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Cache memoizes provider responses keyed by (operation, normalized
// query) and coalesces concurrent identical fetches: among N callers
// for the same key exactly one underlying fetch runs and all N observe
// its outcome.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	channelTTL   time.Duration
	searchTTL    time.Duration
	rateLimitTTL time.Duration

	sweepTicker *time.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// New creates a cache with the given TTLs (zero values use defaults)
// and starts the hourly lazy-eviction sweep.
func New(channelTTL, searchTTL, rateLimitTTL time.Duration) *Cache {
	if channelTTL <= 0 {
		channelTTL = DefaultChannelTTL
	}
	if searchTTL <= 0 {
		searchTTL = DefaultSearchTTL
	}
	if rateLimitTTL <= 0 {
		rateLimitTTL = DefaultRateLimitTTL
	}

	c := &Cache{
		entries:      make(map[string]entry),
		channelTTL:   channelTTL,
		searchTTL:    searchTTL,
		rateLimitTTL: rateLimitTTL,
		stopChan:     make(chan struct{}),
	}

	c.sweepTicker = time.NewTicker(time.Hour)
	go c.sweep()

	return c
}

// GetOrFetch returns the cached value for (op, query) if it is still
// fresh, otherwise runs fetch exactly once across concurrent callers
// and writes the result through on success. Failures are not cached
// except rate limiting, which is negatively cached for a short window.
func (c *Cache) GetOrFetch(ctx context.Context, op Operation, query string, fetch func(ctx context.Context) (any, error)) (any, error) {
	key := Key(op, query)

	if v, err, ok := c.lookup(key); ok {
		return v, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check after winning the flight; a racing caller may
		// have populated the entry already.
		if v, err, ok := c.lookup(key); ok {
			return v, err
		}

		v, err := fetch(ctx)
		if err != nil {
			if errors.Is(err, provider.ErrRateLimited) {
				c.put(key, entry{err: err, insertedAt: time.Now(), ttl: c.rateLimitTTL})
			}
			return nil, err
		}

		c.put(key, entry{value: v, insertedAt: time.Now(), ttl: c.ttlFor(op)})
		return v, nil
	})
	return v, err
}

// Len reports the number of live (unexpired) entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the eviction sweep.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		c.sweepTicker.Stop()
		close(c.stopChan)
	})
}

// Key builds the canonical cache key for an operation and query.
func Key(op Operation, query string) string {
	return string(op) + ":" + strings.ToLower(strings.TrimSpace(query))
}

func (c *Cache) ttlFor(op Operation) time.Duration {
	if op == OpSearch {
		return c.searchTTL
	}
	return c.channelTTL
}

func (c *Cache) lookup(key string) (any, error, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return nil, nil, false
	}
	return e.value, e.err, true
}

func (c *Cache) put(key string, e entry) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *Cache) sweep() {
	for {
		select {
		case <-c.sweepTicker.C:
			c.evictExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

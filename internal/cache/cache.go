// Package cache memoizes fan-out results per request key for a lifetime chosen from the
// result itself.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
)

// Clock returns the current time.
type Clock func() time.Time

type Entry struct {
	Result    addon.StreamResult
	CreatedAt time.Time
	TTL       time.Duration
}

// ResultCache is an in-memory map guarded by a single lock. Expired entries are dropped on read.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	generation uint64

	clock Clock
	ttl   func(addon.StreamResult) time.Duration
}

type Option func(*ResultCache)

func WithClock(clock Clock) Option {
	return func(c *ResultCache) {
		c.clock = clock
	}
}

// WithTTLPolicy replaces the content-aware lifetime policy.
func WithTTLPolicy(policy func(addon.StreamResult) time.Duration) Option {
	return func(c *ResultCache) {
		c.ttl = policy
	}
}

func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: map[string]Entry{},
		clock:   time.Now,
		ttl:     TTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Key builds the cache key of one request.
func Key(profile string, contentType addon.ContentType, id string, season, episode int) string {
	return profile + "|" + string(contentType) + "|" + id + "|" + position(season) + "|" + position(episode)
}

func position(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Get returns a fresh entry. An entry is stale once its age reaches its TTL.
func (c *ResultCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.clock().Sub(entry.CreatedAt) >= entry.TTL {
		delete(c.entries, key)
		return Entry{}, false
	}

	return entry, true
}

// Put stores result under key, superseding any earlier entry.
func (c *ResultCache) Put(key string, result addon.StreamResult) Entry {
	entry := Entry{
		Result:    result,
		CreatedAt: c.clock(),
		TTL:       c.ttl(result),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry

	return entry
}

// PutIfGeneration is Put for a writer that started before a possible Clear. The result is
// dropped when the cache has been cleared since gen was read.
func (c *ResultCache) PutIfGeneration(key string, gen uint64, result addon.StreamResult) (Entry, bool) {
	entry := Entry{
		Result:    result,
		CreatedAt: c.clock(),
		TTL:       c.ttl(result),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return Entry{}, false
	}
	c.entries[key] = entry

	return entry, true
}

// Generation changes on every Clear.
func (c *ResultCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.generation++
}

// Len counts stored entries, including stale ones not yet dropped.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

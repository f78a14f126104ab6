// Package cache memoizes completion results for a short window so duplicate
// inputs within that window reach the remote service only once.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a stored result stays live.
const DefaultTTL = 30 * time.Second

const prefixRunes = 100

type entry struct {
	result   string
	storedAt time.Time
}

// Cache is a TTL map keyed by Fingerprint. It is safe for concurrent use.
// Expired entries are swept on every write; there is no background goroutine.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Fingerprint is the trimmed input's length in runes joined with its first
// 100 runes. Two inputs that agree on both collide; that is accepted.
func Fingerprint(input string) string {
	s := strings.TrimSpace(input)
	r := []rune(s)
	prefix := r
	if len(prefix) > prefixRunes {
		prefix = prefix[:prefixRunes]
	}
	return fmt.Sprintf("%d_%s", len(r), string(prefix))
}

// GetOrCompute returns the live result for input's fingerprint, or calls
// compute and stores its result. Errors are returned without being cached.
// The lock is not held while compute runs.
func (c *Cache) GetOrCompute(input string, compute func() (string, error)) (string, error) {
	key := Fingerprint(input)
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return "", err
	}
	c.set(key, v)
	return v, nil
}

func (c *Cache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return "", false
	}
	return e.result, true
}

func (c *Cache) set(key, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = entry{result: v, storedAt: now}
	c.sweepLocked(now)
}

func (c *Cache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, live or not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Package cache memoizes script valuation results keyed by script content.
package cache

import (
	"encoding/base64"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// entry is stored by value so a reader always sees a complete (value, computedAt) pair
type entry struct {
	value      float64
	computedAt time.Time
}

// ScriptCache implements domain.ScriptCache.
// Freshness is decided on every Get against the injected clock; the backing store's
// own expiration only bounds how long abandoned entries are retained.
type ScriptCache struct {
	store     *gocache.Cache
	retention time.Duration
	now       domain.Clock
}

// NewScriptCache creates a cache whose entries are dropped after retention
// and swept every cleanupInterval
func NewScriptCache(retention, cleanupInterval time.Duration, clock domain.Clock) *ScriptCache {
	if clock == nil {
		clock = time.Now
	}
	return &ScriptCache{
		store:     gocache.New(retention, cleanupInterval),
		retention: retention,
		now:       clock,
	}
}

// Key derives the cache key from the full script bytes.
// The encoding is reversible, so two different scripts can never share a key.
func Key(source string) string {
	return base64.StdEncoding.EncodeToString([]byte(source))
}

// SourceFromKey recovers the script source from a key produced by Key
func SourceFromKey(key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Retention is the longest ttl Get can honor. Entries are gone after it whatever the ttl.
func (c *ScriptCache) Retention() time.Duration {
	return c.retention
}

// Get returns the cached value for source if it is younger than ttl.
// Expired entries are reported as a miss and left for the janitor.
func (c *ScriptCache) Get(source string, ttl time.Duration) (float64, bool) {
	item, found := c.store.Get(Key(source))
	if !found {
		return 0, false
	}

	e := item.(entry)
	if c.now().Sub(e.computedAt) >= ttl {
		return 0, false
	}
	return e.value, true
}

// Put overwrites the entry for source, stamped with the current time
func (c *ScriptCache) Put(source string, value float64) {
	c.store.Set(Key(source), entry{value: value, computedAt: c.now()}, gocache.DefaultExpiration)
}

// Invalidate removes the entry for source. Missing entries are ignored.
func (c *ScriptCache) Invalidate(source string) {
	c.store.Delete(Key(source))
}

// Clear removes all entries
func (c *ScriptCache) Clear() {
	c.store.Flush()
}

// Len returns the number of stored entries, fresh or not
func (c *ScriptCache) Len() int {
	return c.store.ItemCount()
}

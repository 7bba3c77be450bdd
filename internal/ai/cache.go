package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// defaultCacheMaxEntries bounds the per-instance result cache.
const defaultCacheMaxEntries = 128

type cacheEntry struct {
	value     map[string]any
	expiresAt time.Time
}

// resultCache is a TTL-evicting map of generation results, keyed by the
// request fingerprint. Per-instance only; a multi-node deployment would need
// a shared cache in front of it.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache(ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		ttl:     ttl,
		max:     defaultCacheMaxEntries,
		entries: make(map[string]cacheEntry),
		now:     now,
	}
}

func (c *resultCache) get(key string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expiresAt.Before(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *resultCache) set(key string, value map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		c.evictSoonestLocked()
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *resultCache) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = k
			soonest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// cacheKey derives a stable key from everything that shapes a generation
// result.
func cacheKey(providerName, language, preset, ideaText string) string {
	raw, _ := json.Marshal(struct {
		Provider string `json:"provider"`
		Language string `json:"language"`
		Preset   string `json:"preset"`
		IdeaText string `json:"ideaText"`
	}{providerName, language, preset, ideaText})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

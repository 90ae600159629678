package server

import (
	"sync"
	"time"

	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

type cachedReport struct {
	report    types.Report
	expiresAt time.Time
}

// reportCache remembers finished reports by request fingerprint so repeated
// submissions of the same predictions and options return the same run.
type reportCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedReport
}

func newReportCache(ttl time.Duration) *reportCache {
	if ttl <= 0 {
		return nil
	}
	return &reportCache{
		ttl:     ttl,
		entries: make(map[string]cachedReport),
	}
}

// get returns the report stored under key while it is fresh at now. An
// expired entry is evicted on read unless a newer put replaced it meanwhile.
func (c *reportCache) get(key string, now time.Time) (types.Report, bool) {
	if c == nil {
		return types.Report{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return types.Report{}, false
	}
	if entry.expiresAt.After(now) {
		return entry.report, true
	}
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && !cur.expiresAt.After(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return types.Report{}, false
}

// put stores r under key until now+ttl and drops every entry already expired
// at now, so keys that are never read again do not accumulate.
func (c *reportCache) put(key string, r types.Report, now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cachedReport{report: r, expiresAt: now.Add(c.ttl)}
}

func (c *reportCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package nodestore

import (
	"sync"
	"sync/atomic"
	"time"
)

// negativeCache remembers hashes that were confirmed absent from the
// backend, so repeated lookups for a key that will never exist (a
// common pattern while walking a partially-replayed tree) don't keep
// hitting disk. No ecosystem library models "absence with TTL" any
// better than a plain map, so this stays hand-rolled like the
// teacher's version, just trimmed of its standalone sweeper goroutine
// (Database.Sweep drives this one instead).
type negativeCache struct {
	mu      sync.RWMutex
	entries map[Hash256]time.Time
	ttl     time.Duration
	maxSize int

	hits atomic.Int64
}

func newNegativeCache(ttl time.Duration, maxSize int) *negativeCache {
	return &negativeCache{
		entries: make(map[Hash256]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func (nc *negativeCache) markMissing(hash Hash256) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.maxSize > 0 && len(nc.entries) >= nc.maxSize {
		nc.evictOneLocked()
	}
	nc.entries[hash] = time.Now().Add(nc.ttl)
}

func (nc *negativeCache) isMissing(hash Hash256) bool {
	nc.mu.RLock()
	expiresAt, ok := nc.entries[hash]
	nc.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		nc.mu.Lock()
		delete(nc.entries, hash)
		nc.mu.Unlock()
		return false
	}
	nc.hits.Add(1)
	return true
}

func (nc *negativeCache) remove(hash Hash256) {
	nc.mu.Lock()
	delete(nc.entries, hash)
	nc.mu.Unlock()
}

func (nc *negativeCache) sweep() int {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	now := time.Now()
	removed := 0
	for h, exp := range nc.entries {
		if now.After(exp) {
			delete(nc.entries, h)
			removed++
		}
	}
	return removed
}

// evictOneLocked drops an arbitrary entry to make room; map iteration
// order is random in Go, which is good enough for a capacity backstop.
func (nc *negativeCache) evictOneLocked() {
	for h := range nc.entries {
		delete(nc.entries, h)
		return
	}
}

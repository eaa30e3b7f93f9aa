package spatial

import (
	"sort"
	"sync/atomic"
)

// queryCache memoizes query results keyed by a serialized query signature.
// The whole cache is dropped on any index mutation; drags query far more
// often than layout mutates, so coarse invalidation wins on simplicity.
type queryCache struct {
	entries map[string]*cacheEntry
	maxSize int
	seq     uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	invalidations atomic.Uint64
}

type cacheEntry struct {
	result QueryResult
	seq    uint64 // insertion order, for oldest-half eviction
}

// defaultCacheSize bounds the cache when no ceiling is configured.
const defaultCacheSize = 512

func newQueryCache(maxSize int) *queryCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &queryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
	}
}

// get returns the cached result for the signature. Callers must hold the
// index lock.
func (c *queryCache) get(sig string) (QueryResult, bool) {
	entry, ok := c.entries[sig]
	if !ok {
		c.misses.Add(1)
		return QueryResult{}, false
	}
	c.hits.Add(1)
	return entry.result, true
}

// put stores a result, evicting the oldest half of the cache once the
// ceiling is exceeded. Callers must hold the index lock.
func (c *queryCache) put(sig string, result QueryResult) {
	c.seq++
	c.entries[sig] = &cacheEntry{result: result, seq: c.seq}

	if len(c.entries) <= c.maxSize {
		return
	}

	type sigSeq struct {
		sig string
		seq uint64
	}
	ordered := make([]sigSeq, 0, len(c.entries))
	for sig, entry := range c.entries {
		ordered = append(ordered, sigSeq{sig, entry.seq})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	toRemove := len(ordered) / 2
	for i := 0; i < toRemove; i++ {
		delete(c.entries, ordered[i].sig)
	}
	c.evictions.Add(uint64(toRemove))
}

// invalidate drops every entry. Callers must hold the index lock.
func (c *queryCache) invalidate() {
	if len(c.entries) == 0 {
		c.invalidations.Add(1)
		return
	}
	c.entries = make(map[string]*cacheEntry)
	c.invalidations.Add(1)
}

func (c *queryCache) size() int {
	return len(c.entries)
}

// CacheStats holds query cache statistics.
type CacheStats struct {
	Size          int     // Current number of entries
	MaxSize       int     // Maximum entries before eviction
	Hits          uint64  // Number of cache hits
	Misses        uint64  // Number of cache misses
	Evictions     uint64  // Number of evicted entries
	Invalidations uint64  // Number of full invalidations
	HitRate       float64 // Hit rate (0.0 - 1.0)
}

func (c *queryCache) stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		Hits:          hits,
		Misses:        misses,
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		HitRate:       hitRate,
	}
}

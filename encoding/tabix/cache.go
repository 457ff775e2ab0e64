package tabix

import (
	"sync"
	"time"

	"blainsmith.com/go/seahash"
	gunsafe "github.com/grailbio/base/unsafe"
)

const numCacheShards = 64

// CacheKey identifies one version of a source file.
type CacheKey struct {
	Path    string
	ModTime time.Time
	Size    int64
}

type cacheEntry struct {
	modTime int64
	size    int64
	idx     *Index
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// Cache is a thread-safe map from source file versions to loaded indexes.  At
// most one version is kept per path; a lookup with a different modification
// time or size misses.
type Cache struct {
	shards [numCacheShards]cacheShard
}

// DefaultCache is the process-wide cache used by readers unless told
// otherwise.
var DefaultCache = NewCache()

// NewCache creates an empty Cache.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]cacheEntry)
	}
	return c
}

func (c *Cache) shard(path string) *cacheShard {
	h := seahash.Sum64(gunsafe.StringToBytes(path))
	return &c.shards[int(h%uint64(numCacheShards))]
}

// Get returns the index cached for key, if the cached version matches.
func (c *Cache) Get(key CacheKey) (*Index, bool) {
	s := c.shard(key.Path)
	s.mu.Lock()
	e, ok := s.entries[key.Path]
	s.mu.Unlock()
	if !ok || e.modTime != key.ModTime.UnixNano() || e.size != key.Size {
		return nil, false
	}
	return e.idx, true
}

// Put stores idx under key, replacing any other version of the same path.
func (c *Cache) Put(key CacheKey, idx *Index) {
	s := c.shard(key.Path)
	s.mu.Lock()
	s.entries[key.Path] = cacheEntry{modTime: key.ModTime.UnixNano(), size: key.Size, idx: idx}
	s.mu.Unlock()
}

// Invalidate drops any index cached for path.
func (c *Cache) Invalidate(path string) {
	s := c.shard(path)
	s.mu.Lock()
	delete(s.entries, path)
	s.mu.Unlock()
}

// Reset empties the cache.
func (c *Cache) Reset() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]cacheEntry)
		s.mu.Unlock()
	}
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

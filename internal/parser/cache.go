package parser

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/karlseguin/ccache/v2"

	"github.com/roach88/domex/internal/domain"
)

// DefaultCacheSize is the number of parsed domains a Cache keeps.
const DefaultCacheSize = 1000

// Cache parses domains and keeps the results, keyed by a hash of the
// text. Domains are immutable, so a cached one can be shared.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	cache *ccache.Cache
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding up to size domains, DefaultCacheSize
// when size is not positive. Entries do not expire.
func NewCache(size int64) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		cache: ccache.New(ccache.Configure().MaxSize(size).ItemsToPrune(uint32(max(size/10, 1)))),
		ttl:   100 * 365 * 24 * time.Hour,
	}
}

type entry struct {
	text string
	d    domain.Domain
}

// Parse returns the domain of text, parsing it on a miss. Errors are not
// cached.
func (c *Cache) Parse(text string) (domain.Domain, error) {
	key := strconv.FormatUint(xxhash.Sum64String(text), 16)
	if item := c.cache.Get(key); item != nil {
		// the text guards against hash collisions
		if e := item.Value().(entry); e.text == text {
			c.hits.Add(1)
			return e.d, nil
		}
	}
	c.misses.Add(1)
	d, err := Parse(text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, entry{text: text, d: d}, c.ttl)
	return d, nil
}

// Hits returns how many Parse calls were served from the cache.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns how many Parse calls had to parse.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Len returns the number of cached domains.
func (c *Cache) Len() int { return c.cache.ItemCount() }

// Close stops the cache's background worker.
func (c *Cache) Close() { c.cache.Stop() }

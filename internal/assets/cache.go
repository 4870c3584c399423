package assets

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mersel/xslt-service/internal/model"
)

// Loader builds the compiled representation of one asset.
type Loader func() (any, error)

type cacheEntry struct {
	value    any
	loadedAt time.Time
	gen      uint64
}

// Cache is a time-bounded cache for compiled asset representations.
//
// Each asset kind carries a generation counter. Invalidating a kind bumps
// its generation, so every cached entry of that kind becomes stale at once
// without touching the files readers are using: in-flight requests keep the
// snapshot they already resolved, new requests compile against the new
// files. Expired or stale entries are rebuilt lazily on access, with
// concurrent rebuilds of the same key coalesced to a single computation.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// swapMu serializes loaders against multi-file store updates, so a
	// rebuild never compiles from a half-promoted package.
	swapMu sync.RWMutex

	gens [4]atomic.Uint64 // indexed by kind

	group singleflight.Group

	// rebuilds counts loader invocations, observable in tests.
	rebuilds atomic.Int64
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func kindIndex(kind model.AssetKind) int {
	switch kind {
	case model.KindSchema:
		return 0
	case model.KindRuleSet:
		return 1
	case model.KindTemplate:
		return 2
	default:
		return 3
	}
}

// Get returns the cached value for key, rebuilding it through load when the
// entry is missing, expired, or from a previous generation of its kind. At
// most one rebuild per key runs at a time; other callers wait for its result.
func (c *Cache) Get(kind model.AssetKind, key string, load Loader) (any, error) {
	gen := c.gens[kindIndex(kind)].Load()
	full := string(kind) + "/" + key

	c.mu.RLock()
	e, ok := c.entries[full]
	c.mu.RUnlock()
	if ok && e.gen == gen && time.Since(e.loadedAt) < c.ttl {
		return e.value, nil
	}

	// Generation in the flight key: a rebuild from an older generation
	// does not satisfy callers of a newer one.
	flightKey := fmt.Sprintf("%s@%d", full, gen)
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[full]
		c.mu.RUnlock()
		if ok && e.gen == gen && time.Since(e.loadedAt) < c.ttl {
			return e.value, nil
		}

		c.rebuilds.Add(1)
		c.swapMu.RLock()
		value, err := load()
		c.swapMu.RUnlock()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[full] = cacheEntry{value: value, loadedAt: time.Now(), gen: gen}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Hold blocks new rebuilds until Release. Callers replacing several store
// files at once bracket the replacement with Hold/Release and invalidate
// the touched kinds before releasing, so no loader observes the files
// half-replaced. Cache hits are unaffected.
func (c *Cache) Hold() { c.swapMu.Lock() }

// Release lifts a Hold.
func (c *Cache) Release() { c.swapMu.Unlock() }

// Invalidate advances the generation for one asset kind, making all of its
// cached entries stale atomically.
func (c *Cache) Invalidate(kind model.AssetKind) {
	c.gens[kindIndex(kind)].Add(1)
}

// InvalidateAll advances every kind's generation.
func (c *Cache) InvalidateAll() {
	for i := range c.gens {
		c.gens[i].Add(1)
	}
}

// Rebuilds returns the number of loader invocations so far.
func (c *Cache) Rebuilds() int64 {
	return c.rebuilds.Load()
}

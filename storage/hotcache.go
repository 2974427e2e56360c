package storage

import (
	"github.com/VictoriaMetrics/fastcache"
)

// hotCache is a bounded byte cache the engine creates in New (e.hot). No
// read or write path consults or fills it: every read goes to the KV
// backend. Grounded on fastcache's
// zero-GC-pressure byte cache, which the rest of the pack reaches for
// whenever a component needs a bounded, concurrency-safe hot path cache
// rather than the richer but GC-visible golang-lru used by the context
// engine's alt-chain/RandomX caches.
type hotCache struct {
	c *fastcache.Cache
}

const defaultHotCacheBytes = 64 << 20 // 64 MiB

func newHotCache() *hotCache {
	return &hotCache{c: fastcache.New(defaultHotCacheBytes)}
}

func (h *hotCache) Get(key []byte) ([]byte, bool) {
	v, ok := h.c.HasGet(nil, key)
	return v, ok
}

func (h *hotCache) Set(key, value []byte) {
	h.c.Set(key, value)
}

func (h *hotCache) Del(key []byte) {
	h.c.Del(key)
}

func (h *hotCache) Reset() {
	h.c.Reset()
}

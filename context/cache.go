package context

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleContext)

// arcCache is a thin adapter around hashicorp/golang-lru's ARC cache,
// giving the alt-chain context cache map and the RandomX VM arena a
// uniform Add/Get/Remove/Len surface independent of the eviction policy,
// mirroring the teacher's own Cache interface (common/cache.go) reduced to
// the one policy this core actually needs: adaptive replacement, since both
// caches are read far more than they are written and serve bursty,
// recency-skewed access (recent alt-forks, recent RandomX seeds).
type arcCache struct {
	arc *lru.ARCCache
}

func newArcCache(size int) (*arcCache, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &arcCache{arc: arc}, nil
}

func (c *arcCache) Add(key, value interface{})         { c.arc.Add(key, value) }
func (c *arcCache) Get(key interface{}) (interface{}, bool) { return c.arc.Get(key) }
func (c *arcCache) Remove(key interface{})              { c.arc.Remove(key) }
func (c *arcCache) Contains(key interface{}) bool       { return c.arc.Contains(key) }
func (c *arcCache) Len() int                            { return c.arc.Len() }
func (c *arcCache) Purge()                              { c.arc.Purge() }

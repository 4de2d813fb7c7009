// evictor.go houses the eviction loop for Cache.  Every EvictInterval it
// scans the map and removes:
//
//   - entries whose TTL has elapsed
//   - least-recently-used entries when map size exceeds maxEntries
//
// Lazy eviction in load() already hides expired entries from readers; the
// sweep only reclaims memory for keys nobody asks about again.
package profilecache

import (
	"sort"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func (c *Cache) evictLoop(t clockwork.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.Chan():
			c.sweep()
		}
	}
}

// sweep runs one idle and one LRU pass and reports how many entries went.
func (c *Cache) sweep() int {
	now := c.clock.Now().UnixNano()
	var count, evicted int

	// ----------------------------------------------------------------
	// Expiry pass
	// ----------------------------------------------------------------
	c.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		if ent.expired(now) {
			if c.remove(key.(string), ent) {
				evicted++
			}
			return true
		}
		count++
		return true
	})

	// ----------------------------------------------------------------
	// LRU pass
	// ----------------------------------------------------------------
	if c.maxEntries > 0 && count > c.maxEntries {
		type kv struct {
			key string
			ent *entry
			at  int64
		}
		all := make([]kv, 0, count)
		c.m.Range(func(key, value any) bool {
			ent := value.(*entry)
			all = append(all, kv{key: key.(string), ent: ent, at: atomic.LoadInt64(&ent.lastSeen)})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].at < all[j].at })
		for i := 0; i < len(all)-c.maxEntries; i++ {
			if c.remove(all[i].key, all[i].ent) {
				evicted++
			}
		}
	}

	if evicted > 0 {
		zap.S().Debugw("profile cache sweep", "evicted", evicted, "live", c.Len())
	}
	return evicted
}

// internal/profilecache/entry.go
//
// Cache entry.
//
// Context
// -------
// An entry wraps either a Profile or a not-found tombstone.  Tombstones
// keep a burst of lookups for an unlinked Discord user from hammering the
// remote store.  `expiresAt` is fixed at fetch time; `lastSeen` is bumped on
// every hit and drives LRU eviction when the cache is bounded.
//
// Notes
// -----
//   - Entries are immutable after Store except for lastSeen (atomic).
//   - result() hands out a copy of the profile, never the entry itself.
package profilecache

import (
	"sync/atomic"

	"github.com/yanizio/vrclink/internal/profile"
)

type entry struct {
	profile   profile.Profile
	found     bool
	expiresAt int64 // UnixNano
	lastSeen  int64 // UnixNano, atomic
}

func (e *entry) expired(now int64) bool { return now >= e.expiresAt }

func (e *entry) touch(now int64) { atomic.StoreInt64(&e.lastSeen, now) }

func (e *entry) result() (profile.Profile, error) {
	if !e.found {
		return profile.Profile{}, profile.ErrNotFound
	}
	return e.profile, nil
}

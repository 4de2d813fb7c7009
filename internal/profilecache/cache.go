// internal/profilecache/cache.go
//
// Time-bounded profile cache in front of the remote store.
//
// Context
// -------
// Every read of link state funnels through Cache.  A hit is served from a
// sync.Map with no locking.  A miss goes to the remote store exactly once
// per key no matter how many goroutines ask at the same moment: callers
// queue behind a singleflight barrier and share the result.
//
// Both found profiles and not-found tombstones are cached for TTL.  Remote
// failures are never cached; they surface as profile.ErrRemoteUnavailable.
//
// Invalidation
// ------------
// Invalidate deletes the entry and forgets any in-flight fetch for the key.
// A fetch that started before an invalidation never writes its (possibly
// stale) result back: each fetch holds a fill token, and Invalidate marks
// the key's token stale under the same mutex.  Invalidating one key never
// touches fetches for another.
//
// Cancellation
// ------------
// The shared fetch runs detached from any single caller.  Each caller still
// waits on its own context and returns ctx.Err() as soon as it is done.
//
// Notes
// -----
//   - The clock is injected so TTL expiry is testable without sleeping.
//   - Construct once at boot and pass the *Cache to every consumer.
package profilecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/vrclink/internal/metrics"
	"github.com/yanizio/vrclink/internal/profile"
)

// Static defaults.  Override via Config.
const (
	DefaultTTL           = time.Hour
	DefaultEvictInterval = 5 * time.Minute
)

// Config tunes a Cache.  Zero values fall back to the defaults above;
// MaxEntries ≤ 0 means unbounded, EvictInterval < 0 disables the sweeper.
type Config struct {
	TTL           time.Duration
	MaxEntries    int
	EvictInterval time.Duration
}

// Option customises a Cache at construction.
type Option func(*Cache)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// Cache lazily loads profiles and keeps them for TTL.
type Cache struct {
	client profile.Client
	clock  clockwork.Clock
	sfg    singleflight.Group
	m      sync.Map // discord id → *entry

	mu    sync.Mutex       // serialises store and invalidate
	fills map[string]*fill // in-flight fetch per key, guarded by mu

	ttl        time.Duration
	maxEntries int
	interval   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	size     atomic.Int64
}

// New constructs a Cache and starts the background evictor.
func New(client profile.Client, cfg Config, opts ...Option) *Cache {
	c := &Cache{
		client:     client,
		clock:      clockwork.NewRealClock(),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		interval:   cfg.EvictInterval,
		stop:       make(chan struct{}),
		fills:      make(map[string]*fill),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.interval == 0 {
		c.interval = DefaultEvictInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.interval > 0 {
		go c.evictLoop(c.clock.NewTicker(c.interval))
	}
	return c
}

// Close stops the evictor.  The cache remains readable.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// GetProfile returns the profile for discordID, loading it on demand.
// A missing row is reported as profile.ErrNotFound, an unreachable store as
// profile.ErrRemoteUnavailable.
func (c *Cache) GetProfile(ctx context.Context, discordID string) (profile.Profile, error) {
	if ent, ok := c.load(discordID); ok {
		metrics.ProfileCacheHitsTotal.Inc()
		return ent.result()
	}

	ch := c.sfg.DoChan(discordID, func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if ent, ok := c.load(discordID); ok {
			metrics.ProfileCacheHitsTotal.Inc()
			return ent, nil
		}
		metrics.ProfileCacheMissesTotal.Inc()

		f := c.beginFill(discordID)

		// The fetch is shared by every waiter, so one caller's cancellation
		// must not fail the others.  The client's own timeout still applies.
		p, err := c.client.Get(context.WithoutCancel(ctx), discordID)
		if err != nil && !errors.Is(err, profile.ErrNotFound) {
			metrics.ProfileFetchErrorsTotal.Inc()
			zap.L().Warn("profile fetch failed",
				zap.String("discord_id", discordID),
				zap.Error(err))
			c.endFill(discordID, f)
			return nil, err
		}

		now := c.clock.Now().UnixNano()
		ent := &entry{
			profile:   p,
			found:     err == nil,
			expiresAt: now + int64(c.ttl),
			lastSeen:  now,
		}
		c.storeIfCurrent(discordID, ent, f)
		return ent, nil
	})

	select {
	case <-ctx.Done():
		return profile.Profile{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return profile.Profile{}, res.Err
		}
		return res.Val.(*entry).result()
	}
}

// Invalidate drops discordID so the next GetProfile re-fetches.
func (c *Cache) Invalidate(discordID string) {
	c.mu.Lock()
	if f, ok := c.fills[discordID]; ok {
		f.stale = true
		delete(c.fills, discordID)
	}
	c.sfg.Forget(discordID)
	if _, loaded := c.m.LoadAndDelete(discordID); loaded {
		c.size.Add(-1)
		metrics.CachedProfiles.Dec()
		metrics.ProfileEvictTotal.Inc()
	}
	c.mu.Unlock()
}

// IsVerified reports whether discordID has a verified link.  A missing
// profile is false with a nil error.  A store outage is false with
// profile.ErrRemoteUnavailable so the caller can choose to fail closed.
func (c *Cache) IsVerified(ctx context.Context, discordID string) (bool, error) {
	p, err := c.GetProfile(ctx, discordID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsVerified, nil
}

// IsBanned reports whether discordID is banned.  Same error contract as
// IsVerified.
func (c *Cache) IsBanned(ctx context.Context, discordID string) (bool, error) {
	p, err := c.GetProfile(ctx, discordID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsBanned, nil
}

// Len reports the number of live entries, tombstones included.
func (c *Cache) Len() int { return int(c.size.Load()) }

// load returns an unexpired entry.  Expired entries are removed on sight.
func (c *Cache) load(discordID string) (*entry, bool) {
	v, ok := c.m.Load(discordID)
	if !ok {
		return nil, false
	}
	ent := v.(*entry)
	now := c.clock.Now().UnixNano()
	if ent.expired(now) {
		c.remove(discordID, ent)
		return nil, false
	}
	ent.touch(now)
	return ent, true
}

// fill marks one fetch in flight.  stale is set by Invalidate.
type fill struct {
	stale bool
}

func (c *Cache) beginFill(discordID string) *fill {
	f := &fill{}
	c.mu.Lock()
	c.fills[discordID] = f
	c.mu.Unlock()
	return f
}

func (c *Cache) endFill(discordID string, f *fill) {
	c.mu.Lock()
	if c.fills[discordID] == f {
		delete(c.fills, discordID)
	}
	c.mu.Unlock()
}

// storeIfCurrent stores ent unless discordID was invalidated after f began.
func (c *Cache) storeIfCurrent(discordID string, ent *entry, f *fill) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fills[discordID] == f {
		delete(c.fills, discordID)
	}
	if f.stale {
		return
	}
	if _, loaded := c.m.Swap(discordID, ent); !loaded {
		c.size.Add(1)
		metrics.CachedProfiles.Inc()
	}
}

// remove deletes discordID only if it still maps to ent.
func (c *Cache) remove(discordID string, ent *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m.CompareAndDelete(discordID, ent) {
		c.size.Add(-1)
		metrics.CachedProfiles.Dec()
		metrics.ProfileEvictTotal.Inc()
		return true
	}
	return false
}

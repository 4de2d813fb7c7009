package profilecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/vrclink/internal/profile"
)

// fakeStore is an in-memory profile.Client that counts Get calls.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]profile.Profile
	fail     error

	gets    atomic.Int32
	entered chan struct{} // receives once per Get when non-nil
	release chan struct{} // Get blocks on it when non-nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]profile.Profile{}}
}

func (f *fakeStore) set(p profile.Profile) {
	f.mu.Lock()
	f.profiles[p.DiscordID] = p
	f.mu.Unlock()
}

func (f *fakeStore) Get(_ context.Context, id string) (profile.Profile, error) {
	f.gets.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return profile.Profile{}, f.fail
	}
	p, ok := f.profiles[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) Put(context.Context, profile.Link) error            { return nil }
func (f *fakeStore) Update(context.Context, string, profile.Patch) error { return nil }

func newTestCache(store profile.Client, cfg Config) (*Cache, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClock()
	cfg.EvictInterval = -1
	return New(store, cfg, WithClock(clk)), clk
}

func TestGetProfile_OneRemoteCallPerTTL(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "A", IsVerified: true})
	c, clk := newTestCache(store, Config{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p, err := c.GetProfile(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "A", p.VRChatName)
	}
	assert.EqualValues(t, 1, store.gets.Load())

	clk.Advance(DefaultTTL - time.Second)
	_, err := c.GetProfile(ctx, "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.gets.Load(), "entry still fresh")

	clk.Advance(time.Second)
	_, err = c.GetProfile(ctx, "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.gets.Load(), "entry expired at TTL")
}

func TestGetProfile_TombstoneIsCached(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestCache(store, Config{})

	for i := 0; i < 3; i++ {
		_, err := c.GetProfile(context.Background(), "ghost")
		assert.True(t, errors.Is(err, profile.ErrNotFound))
	}
	assert.EqualValues(t, 1, store.gets.Load())
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "Old"})
	c, _ := newTestCache(store, Config{})
	ctx := context.Background()

	_, err := c.GetProfile(ctx, "d1")
	require.NoError(t, err)

	store.set(profile.Profile{DiscordID: "d1", VRChatName: "New"})
	c.Invalidate("d1")

	p, err := c.GetProfile(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "New", p.VRChatName)
	assert.EqualValues(t, 2, store.gets.Load())

	// Invalidating an absent key is harmless.
	c.Invalidate("never-seen")
}

func TestGetProfile_RemoteErrorNotCached(t *testing.T) {
	store := newFakeStore()
	store.fail = errors.Wrap(profile.ErrRemoteUnavailable, "boom")
	c, _ := newTestCache(store, Config{})
	ctx := context.Background()

	_, err := c.GetProfile(ctx, "d1")
	assert.True(t, errors.Is(err, profile.ErrRemoteUnavailable))
	_, err = c.GetProfile(ctx, "d1")
	assert.True(t, errors.Is(err, profile.ErrRemoteUnavailable))

	assert.EqualValues(t, 2, store.gets.Load())
	assert.Equal(t, 0, c.Len())
}

func TestPredicates(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "v", IsVerified: true})
	store.set(profile.Profile{DiscordID: "b", IsBanned: true})
	c, _ := newTestCache(store, Config{})
	ctx := context.Background()

	ok, err := c.IsVerified(ctx, "v")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsBanned(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsVerified(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsBanned(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredicates_OutageIsNotFalseVerified(t *testing.T) {
	store := newFakeStore()
	store.fail = profile.ErrRemoteUnavailable
	c, _ := newTestCache(store, Config{})

	ok, err := c.IsVerified(context.Background(), "d1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, profile.ErrRemoteUnavailable))

	ok, err = c.IsBanned(context.Background(), "d1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, profile.ErrRemoteUnavailable))
}

func TestGetProfile_ConcurrentMissesShareOneFetch(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "A"})
	store.entered = make(chan struct{}, 64)
	store.release = make(chan struct{})
	c, _ := newTestCache(store, Config{})

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetProfile(context.Background(), "d1")
			errs <- err
		}()
	}

	<-store.entered
	close(store.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, store.gets.Load())
}

func TestInvalidate_DuringFetchDoesNotRepopulate(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "Stale"})
	store.entered = make(chan struct{}, 4)
	store.release = make(chan struct{})
	c, _ := newTestCache(store, Config{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetProfile(context.Background(), "d1")
	}()

	<-store.entered
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "Fresh"})
	c.Invalidate("d1")
	close(store.release)
	<-done

	assert.Equal(t, 0, c.Len(), "stale fetch must not be stored")

	p, err := c.GetProfile(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", p.VRChatName)
	assert.EqualValues(t, 2, store.gets.Load())
}

func TestGetProfile_ReturnsCopies(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "A"})
	c, _ := newTestCache(store, Config{})

	p, err := c.GetProfile(context.Background(), "d1")
	require.NoError(t, err)
	p.VRChatName = "mutated"

	again, err := c.GetProfile(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.VRChatName)
}

func TestSweep_ExpiredAndLRU(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		store.set(profile.Profile{DiscordID: id})
	}
	c, clk := newTestCache(store, Config{TTL: time.Minute, MaxEntries: 2})
	ctx := context.Background()

	_, _ = c.GetProfile(ctx, "a")
	clk.Advance(30 * time.Second)
	_, _ = c.GetProfile(ctx, "b")
	clk.Advance(time.Second)
	_, _ = c.GetProfile(ctx, "c")
	clk.Advance(time.Second)
	_, _ = c.GetProfile(ctx, "d")
	require.Equal(t, 4, c.Len())

	// "a" is 32s old: still fresh, but LRU pressure (4 > 2) drops a and b.
	assert.Equal(t, 2, c.sweep())
	assert.Equal(t, 2, c.Len())

	clk.Advance(time.Minute)
	assert.Equal(t, 2, c.sweep())
	assert.Equal(t, 0, c.Len())
}

func TestGetProfile_CallerDeadlineWhileFetchBlocked(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "d1", VRChatName: "A"})
	store.release = make(chan struct{})
	c, _ := newTestCache(store, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetProfile(ctx, "d1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, time.Since(start) < time.Second, "caller must not wait for the fetch")

	// The shared fetch still completes and fills the cache for later callers.
	close(store.release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	p, err := c.GetProfile(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "A", p.VRChatName)
	assert.EqualValues(t, 1, store.gets.Load())
}

func TestInvalidate_OtherKeyKeepsInFlightFill(t *testing.T) {
	store := newFakeStore()
	store.set(profile.Profile{DiscordID: "a", VRChatName: "A"})
	store.entered = make(chan struct{}, 4)
	store.release = make(chan struct{})
	c, _ := newTestCache(store, Config{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetProfile(context.Background(), "a")
	}()

	<-store.entered
	c.Invalidate("b")
	close(store.release)
	<-done

	p, err := c.GetProfile(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "A", p.VRChatName)
	assert.EqualValues(t, 1, store.gets.Load())
	assert.Equal(t, 1, c.Len())
}

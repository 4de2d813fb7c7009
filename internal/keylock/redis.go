package keylock

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultRetryWait = 50 * time.Millisecond
	keyPrefix        = "vrclink:lock:"
)

// unlockScript deletes the key only when the caller still owns it.
var unlockScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// refreshScript extends the key's expiry only when the caller still owns it.
var refreshScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// ErrLockNotHeld is logged when the lock expired before release.
var ErrLockNotHeld = errors.New("lock not held")

// Redis is a cross-process Locker using SET NX PX with an owner token.
// Local still runs first so goroutines in this process queue on a mutex
// instead of polling Redis.  While held, the lease is extended every ttl/3
// so a slow transition never outlives it.
type Redis struct {
	rdb   goredis.Cmdable
	ttl   time.Duration
	wait  time.Duration
	local *Local
}

// NewRedis wraps rdb.  ttl ≤ 0 means 10 s.
func NewRedis(rdb goredis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, wait: defaultRetryWait, local: NewLocal()}
}

// Lock acquires the process-local lock, then polls Redis until the
// distributed lock is won or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := r.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	rkey := keyPrefix + key
	owner := uuid.New().String()
	for {
		ok, err := r.rdb.SetNX(ctx, rkey, owner, r.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, errors.Wrapf(err, "acquire lock %s", rkey)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(r.wait):
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.keepAlive(rkey, owner, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() { r.release(rkey, owner, stop, stopped, unlockLocal) })
	}, nil
}

// Distributed reports that Redis excludes other processes, not only other
// goroutines.
func (r *Redis) Distributed() bool { return true }

// keepAlive extends the lease until stop is closed or ownership is lost.
func (r *Redis) keepAlive(rkey, owner string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	t := time.NewTicker(r.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			n, err := refreshScript.Run(ctx, r.rdb, []string{rkey}, owner, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				zap.L().Warn("redis lock refresh failed", zap.String("key", rkey), zap.Error(err))
				continue
			}
			if n == 0 {
				zap.L().Warn("redis lock refresh", zap.String("key", rkey), zap.Error(ErrLockNotHeld))
				return
			}
		}
	}
}

func (r *Redis) release(rkey, owner string, stop chan struct{}, stopped <-chan struct{}, unlockLocal func()) {
	defer unlockLocal()
	close(stop)
	<-stopped

	// Release must run even if the request context is already gone.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := unlockScript.Run(ctx, r.rdb, []string{rkey}, owner).Int64()
	if err != nil {
		zap.L().Warn("redis unlock failed", zap.String("key", rkey), zap.Error(err))
		return
	}
	if n == 0 {
		zap.L().Warn("redis unlock", zap.String("key", rkey), zap.Error(ErrLockNotHeld))
	}
}

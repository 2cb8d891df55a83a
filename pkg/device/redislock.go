package device

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/bgpwatch/pkg/util"
)

// Redis lock defaults.
const (
	DefaultLockTTL   = 60 * time.Second
	DefaultLockRetry = 500 * time.Millisecond
	DefaultLockWait  = 15 * time.Second
)

// acquireLockScript is a Lua script for atomic lock acquisition.
// Returns 1 on success, 0 if already locked by another holder.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript is a Lua script for atomic lock release with holder verification.
// Returns 1 on success, 0 if holder mismatch, -1 if key doesn't exist.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLockOptions configures a RedisLocker.
type RedisLockOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder can keep a router locked.
	TTL time.Duration
	// Wait is how long Lock retries before giving up with ErrDeviceLocked.
	Wait   time.Duration
	Holder string
}

// RedisLocker serializes configuration sessions across processes using a
// lock hash BGPWATCH_LOCK|<router> with holder, acquired time and TTL.
type RedisLocker struct {
	client *redis.Client
	holder string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a Redis-backed locker. The connection is lazy; call
// Ping to verify reachability.
func NewRedisLocker(opts RedisLockOptions) *RedisLocker {
	l := &RedisLocker{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		holder: opts.Holder,
		ttl:    opts.TTL,
		wait:   opts.Wait,
		retry:  DefaultLockRetry,
	}
	if l.holder == "" {
		l.holder = DefaultLockHolder()
	}
	if l.ttl <= 0 {
		l.ttl = DefaultLockTTL
	}
	if l.wait <= 0 {
		l.wait = DefaultLockWait
	}
	return l
}

// DefaultLockHolder identifies this process as <hostname>:<pid>.
func DefaultLockHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// Ping tests the connection
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func lockKey(router string) string {
	return "BGPWATCH_LOCK|" + router
}

// Lock acquires the lock for router, retrying until Wait elapses.
// Returns util.ErrDeviceLocked if another holder keeps it for longer.
func (l *RedisLocker) Lock(ctx context.Context, router string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.tryAcquire(ctx, router)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(router) }, nil
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("locking %s: %w", router, util.ErrDeviceLocked)
		case <-t.C:
		}
	}
}

func (l *RedisLocker) tryAcquire(ctx context.Context, router string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	ttl := int(l.ttl / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	result, err := acquireLockScript.Run(ctx, l.client, []string{lockKey(router)},
		l.holder, now, fmt.Sprintf("%d", ttl)).Int()
	if err != nil {
		return false, fmt.Errorf("acquiring lock for %s: %w", router, err)
	}
	return result == 1, nil
}

// release runs on a fresh context so an expired caller context cannot leave
// the lock behind until TTL.
func (l *RedisLocker) release(router string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := releaseLockScript.Run(ctx, l.client, []string{lockKey(router)}, l.holder).Int()
	if err != nil {
		util.WithDevice(router).Warnf("releasing config lock: %v", err)
		return
	}
	if result == 0 {
		util.WithDevice(router).Warnf("config lock for %s is held by another holder (expired?)", router)
	}
}

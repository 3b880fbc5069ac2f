// Package lock serializes read-modify-write cycles on a single record.
// KeyedMutex covers a single process; RedisLocker extends the guarantee
// across server replicas sharing one database.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock could not be acquired in time.
var ErrNotObtained = errors.New("lock not obtained")

// Locker acquires an exclusive lock on key. The returned func releases it
// and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker with one mutex per key. Entries are
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, fmt.Errorf("%w: %s: %w", ErrNotObtained, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// RedisLocker is a Locker backed by redislock. Locks expire after TTL so a
// crashed holder cannot wedge a record forever.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	opts   *redislock.Options
}

// RedisOptions tunes RedisLocker.
type RedisOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// TTL of an obtained lock. Defaults to 30s.
	TTL time.Duration
	// RetryEvery and MaxRetries bound how long Lock waits for a busy key.
	RetryEvery time.Duration
	MaxRetries int
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(rdb redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 50 * time.Millisecond
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 100
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    opts.TTL,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(opts.RetryEvery), opts.MaxRetries),
		},
		prefix: opts.Prefix,
	}
}

// Lock implements Locker.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, r.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return func() {
		// The caller's context may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}, nil
}

// RecordKey is the lock key of a reconciliation triple.
func RecordKey(entityID, periodID, account string) string {
	return "recon:" + entityID + "|" + periodID + "|" + account
}

// AdjustmentKey is the lock key of an adjustment entry.
func AdjustmentKey(id string) string {
	return "adjustment:" + id
}

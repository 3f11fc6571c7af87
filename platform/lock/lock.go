// Package lock serializes work per key (one conversation step per order).
// KeyedMutex covers a single process; RedisLocker covers every worker that
// shares the Redis instance.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a blocking Lock gives up before the key frees.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held key. Calling it more than once is a no-op.
type Unlock func()

// Locker hands out exclusive ownership of string keys.
type Locker interface {
	// Lock blocks until key is held or ctx ends.
	Lock(ctx context.Context, key string) (Unlock, error)
	// TryLock returns ok=false without waiting when key is held elsewhere.
	TryLock(ctx context.Context, key string) (Unlock, bool, error)
}

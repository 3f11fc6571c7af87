package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, ttl)
	l.pollInterval = 5 * time.Millisecond
	return l, mr
}

func TestRedisLockerExcludes(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "order-1")
	if err != nil || !ok {
		t.Fatalf("expected first TryLock to succeed, ok=%v err=%v", ok, err)
	}
	if !mr.Exists(defaultKeyPrefix + "order-1") {
		t.Fatalf("expected lock key to exist in redis")
	}
	if _, ok, _ := l.TryLock(ctx, "order-1"); ok {
		t.Fatalf("expected second TryLock to fail")
	}

	unlock()
	if mr.Exists(defaultKeyPrefix + "order-1") {
		t.Fatalf("expected unlock to delete the key")
	}
}

func TestRedisLockerExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, ok, _ := l.TryLock(ctx, "order-1")
	if !ok {
		t.Fatalf("expected TryLock to succeed")
	}
	mr.FastForward(2 * time.Second)

	fresh, ok, _ := l.TryLock(ctx, "order-1")
	if !ok {
		t.Fatalf("expected lock to be acquirable after ttl")
	}
	defer fresh()

	stale()
	if !mr.Exists(defaultKeyPrefix + "order-1") {
		t.Fatalf("stale unlock must not delete the new owner's key")
	}
}

func TestRedisLockerLockWaitsForRelease(t *testing.T) {
	l, _ := newTestRedisLocker(t, time.Minute)
	ctx := context.Background()

	held, _, _ := l.TryLock(ctx, "order-1")
	go func() {
		time.Sleep(20 * time.Millisecond)
		held()
	}()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock, err := l.Lock(waitCtx, "order-1")
	if err != nil {
		t.Fatalf("expected Lock to acquire after release, got %v", err)
	}
	unlock()
}

func TestRedisLockerLockTimesOut(t *testing.T) {
	l, _ := newTestRedisLocker(t, time.Minute)
	held, _, _ := l.TryLock(context.Background(), "order-1")
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "order-1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

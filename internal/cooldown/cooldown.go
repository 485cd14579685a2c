// Package cooldown enforces a per-host politeness interval across
// multiple spiderd processes sharing one Redis instance, falling back to
// an in-process tracker when a Redis call fails.
package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker reports whether a host is past its cooldown window and records
// a fetch against it. Implementations must be safe for concurrent use.
type Tracker interface {
	Ready(ctx context.Context, host string) (bool, error)
	MarkFetched(ctx context.Context, host string) error
}

// RedisTracker records a per-host cooldown window using SET NX EX, shared
// by every worker across the fleet. Ready and MarkFetched are separate
// calls, so two workers that both see a host as ready may both fetch it.
type RedisTracker struct {
	rdb    *redis.Client
	window time.Duration
}

// NewRedisTracker builds a RedisTracker enforcing window between fetches
// of the same host.
func NewRedisTracker(rdb *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, window: window}
}

func cooldownKey(host string) string {
	return fmt.Sprintf("spiderd:cooldown:%s", host)
}

// Ready reports whether host has no active cooldown key.
func (t *RedisTracker) Ready(ctx context.Context, host string) (bool, error) {
	exists, err := t.rdb.Exists(ctx, cooldownKey(host)).Result()
	if err != nil {
		return false, err
	}
	return exists == 0, nil
}

// MarkFetched claims the cooldown window for host. A failed NX claim
// (another worker fetched it first) is not an error.
func (t *RedisTracker) MarkFetched(ctx context.Context, host string) error {
	_, err := t.rdb.SetNX(ctx, cooldownKey(host), time.Now().UTC().Unix(), t.window).Result()
	return err
}

// LocalTracker is the in-process fallback used when Redis calls fail. It
// enforces the same window within a single process only.
type LocalTracker struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewLocalTracker builds a LocalTracker enforcing window between fetches
// of the same host within this process.
func NewLocalTracker(window time.Duration) *LocalTracker {
	return &LocalTracker{window: window, last: make(map[string]time.Time)}
}

func (t *LocalTracker) Ready(_ context.Context, host string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[host]
	if !ok {
		return true, nil
	}
	return time.Since(last) >= t.window, nil
}

func (t *LocalTracker) MarkFetched(_ context.Context, host string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[host] = time.Now()
	return nil
}

// FallbackTracker prefers a RedisTracker and falls back to a LocalTracker
// whenever the Redis call errors, so a Redis outage degrades politeness
// enforcement to per-process instead of failing fetches outright.
type FallbackTracker struct {
	primary  *RedisTracker
	fallback *LocalTracker
}

// NewFallbackTracker builds a FallbackTracker. primary may be nil, in
// which case every call goes straight to fallback.
func NewFallbackTracker(primary *RedisTracker, fallback *LocalTracker) *FallbackTracker {
	return &FallbackTracker{primary: primary, fallback: fallback}
}

func (t *FallbackTracker) Ready(ctx context.Context, host string) (bool, error) {
	if t.primary != nil {
		if ready, err := t.primary.Ready(ctx, host); err == nil {
			return ready, nil
		}
	}
	return t.fallback.Ready(ctx, host)
}

func (t *FallbackTracker) MarkFetched(ctx context.Context, host string) error {
	if t.primary != nil {
		if err := t.primary.MarkFetched(ctx, host); err == nil {
			return nil
		}
	}
	return t.fallback.MarkFetched(ctx, host)
}

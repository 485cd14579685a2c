package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTracker_ReadyThenCoolsDown(t *testing.T) {
	ctx := context.Background()
	tr := NewLocalTracker(50 * time.Millisecond)

	ready, err := tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, ready, "host with no recorded fetch is ready")

	require.NoError(t, tr.MarkFetched(ctx, "example.com"))

	ready, err = tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ready, "host fetched just now should still be cooling down")

	time.Sleep(60 * time.Millisecond)
	ready, err = tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, ready, "host should be ready again after the window elapses")
}

func TestLocalTracker_TracksHostsIndependently(t *testing.T) {
	ctx := context.Background()
	tr := NewLocalTracker(time.Minute)

	require.NoError(t, tr.MarkFetched(ctx, "a.example.com"))

	ready, err := tr.Ready(ctx, "b.example.com")
	require.NoError(t, err)
	assert.True(t, ready, "unrelated host is unaffected by another host's cooldown")
}

func TestFallbackTracker_FallsBackWhenRedisUnreachable(t *testing.T) {
	ctx := context.Background()
	unreachable := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	primary := NewRedisTracker(unreachable, time.Minute)
	fallback := NewLocalTracker(50 * time.Millisecond)
	tr := NewFallbackTracker(primary, fallback)

	ready, err := tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, tr.MarkFetched(ctx, "example.com"))

	ready, err = tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ready, "fallback tracker should have recorded the fetch")
}

func TestFallbackTracker_NilPrimaryUsesFallbackOnly(t *testing.T) {
	ctx := context.Background()
	fallback := NewLocalTracker(time.Minute)
	tr := NewFallbackTracker(nil, fallback)

	require.NoError(t, tr.MarkFetched(ctx, "example.com"))
	ready, err := tr.Ready(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ready)
}

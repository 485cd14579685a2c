package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withNoSleep(t *testing.T) {
	t.Helper()
	orig := Sleep
	Sleep = func(time.Duration) {}
	t.Cleanup(func() { Sleep = orig })
}

func TestExponentialBackoffHandler_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	h := ExponentialBackoffHandler(BackoffConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})

	err := h(func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoffHandler_RetriesThenSucceeds(t *testing.T) {
	withNoSleep(t)
	calls := 0
	h := ExponentialBackoffHandler(BackoffConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})

	err := h(func() error {
		calls++
		if calls < 3 {
			return NewFetchError(errors.New("boom"), time.Millisecond)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExponentialBackoffHandler_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	h := ExponentialBackoffHandler(BackoffConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})

	err := h(func() error {
		calls++
		return errors.New("not retryable")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoffHandler_ExhaustsAfterMaxRetries(t *testing.T) {
	withNoSleep(t)
	calls := 0
	h := ExponentialBackoffHandler(BackoffConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})

	err := h(func() error {
		calls++
		return NewFetchError(errors.New("boom"), time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // max_retries + 1 total attempts
}

func TestCooldownHandler_DoesNotLoop(t *testing.T) {
	withNoSleep(t)
	calls := 0
	next := Handler(func(fn Fn) error {
		calls++
		return fn()
	})
	h := CooldownHandler(time.Millisecond, next)

	err := h(func() error {
		return NewFetchError(errors.New("boom"), time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls) // invoked once, then once more after cooldown
}

func TestCooldownHandler_SucceedsOnSecondAttempt(t *testing.T) {
	withNoSleep(t)
	attempt := 0
	next := Handler(func(fn Fn) error {
		attempt++
		return fn()
	})
	h := CooldownHandler(time.Millisecond, next)

	calls := 0
	err := h(func() error {
		calls++
		if calls == 1 {
			return NewFetchError(errors.New("boom"), time.Millisecond)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
}

func TestDefaultChain(t *testing.T) {
	withNoSleep(t)
	h := DefaultChain(time.Millisecond, BackoffConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})

	calls := 0
	err := h(func() error {
		calls++
		return NewFetchError(errors.New("boom"), time.Millisecond)
	})

	require.Error(t, err)
	// cooldown invokes the backoff handler twice, each running max_retries+1=2 attempts
	assert.Equal(t, 4, calls)
}

// Package retry implements the composable retry chain used to wrap
// fetch attempts: a cooldown handler wrapping an exponential-backoff
// handler, following the source's two-handler chain-of-responsibility
// shape. No class hierarchy is needed; each handler is a plain function
// wrapper around the next stage.
package retry

import (
	"errors"
	"time"
)

// FetchError signals a retryable failure from the fetch pipeline. It
// carries the caller's suggested RetryAfter hint.
type FetchError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a retryable fetch error with the given
// retry_after hint.
func NewFetchError(err error, retryAfter time.Duration) *FetchError {
	return &FetchError{Err: err, RetryAfter: retryAfter}
}

// AsFetchError reports whether err is (or wraps) a *FetchError.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Fn is a retryable unit of work.
type Fn func() error

// Handler wraps a Fn with retry behavior and invokes it.
type Handler func(fn Fn) error

// Sleep is overridable in tests so backoff delays don't actually block.
var Sleep = time.Sleep

// BackoffConfig configures ExponentialBackoffHandler.
type BackoffConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// ExponentialBackoffHandler invokes fn; on a retryable FetchError it
// waits max(min(delay, MaxDelay), err.RetryAfter), then retries,
// multiplying delay by BackoffFactor after every attempt.
// Non-retryable errors are returned immediately. After MaxRetries+1
// total attempts it returns the last retryable error.
func ExponentialBackoffHandler(cfg BackoffConfig) Handler {
	return func(fn Fn) error {
		delay := cfg.InitialDelay
		var lastErr error

		attempts := cfg.MaxRetries + 1
		for attempt := 0; attempt < attempts; attempt++ {
			err := fn()
			if err == nil {
				return nil
			}

			fe, retryable := AsFetchError(err)
			if !retryable {
				return err
			}
			lastErr = fe

			if attempt == attempts-1 {
				break
			}

			wait := delay
			if wait > cfg.MaxDelay {
				wait = cfg.MaxDelay
			}
			if fe.RetryAfter > wait {
				wait = fe.RetryAfter
			}
			Sleep(wait)

			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		}

		return lastErr
	}
}

// CooldownHandler invokes next(fn); on any retryable error it sleeps
// cooldown once, then invokes next(fn) a second time. It does not loop.
func CooldownHandler(cooldown time.Duration, next Handler) Handler {
	return func(fn Fn) error {
		err := next(fn)
		if err == nil {
			return nil
		}
		if _, retryable := AsFetchError(err); !retryable {
			return err
		}

		Sleep(cooldown)
		return next(fn)
	}
}

// DefaultChain composes Cooldown -> ExponentialBackoff, matching the
// source's RetryManager.create_default_chain.
func DefaultChain(cooldown time.Duration, backoff BackoffConfig) Handler {
	return CooldownHandler(cooldown, ExponentialBackoffHandler(backoff))
}

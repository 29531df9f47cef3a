// Package retry runs storage operations under an exponential backoff policy.
// Only errors the policy accepts are retried; when attempts run out the error
// from the last attempt is returned as is.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
	goretry "github.com/sethvargo/go-retry"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration

	// ShouldRetry decides whether the failure of the given attempt (1-based)
	// earns another one. Nil retries apperr.IsRetryable errors.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is called before sleeping for delay ahead of attempt+1.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// Default retries transient storage errors and timeouts three times in
// total, starting at 500ms and doubling up to 5s.
func Default() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          5 * time.Second,
		ShouldRetry:       func(err error, _ int) bool { return apperr.IsRetryable(err) },
	}
}

// None runs the operation exactly once.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) shouldRetry(err error, attempt int) bool {
	if p.ShouldRetry == nil {
		return apperr.IsRetryable(err)
	}
	return p.ShouldRetry(err, attempt)
}

// backoff builds the delay sequence: InitialDelay * BackoffMultiplier^n,
// capped at MaxDelay, for at most MaxAttempts-1 retries.
func (p Policy) backoff(lastErr *error, attempt *int) goretry.Backoff {
	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	n := 0
	var b goretry.Backoff = goretry.BackoffFunc(func() (time.Duration, bool) {
		f := float64(p.InitialDelay) * math.Pow(multiplier, float64(n))
		d := p.MaxDelay
		if f < math.MaxInt64/2 {
			d = time.Duration(f)
		}
		n++
		return d, false
	})
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	b = goretry.WithMaxRetries(uint64(retries), b)

	return goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if !stop && p.OnRetry != nil {
			p.OnRetry(*lastErr, *attempt, d)
		}
		return d, stop
	})
}

// Do runs fn until it succeeds, the policy gives up or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	attempt := 0
	return goretry.Do(ctx, p.backoff(&lastErr, &attempt), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.shouldRetry(err, attempt) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

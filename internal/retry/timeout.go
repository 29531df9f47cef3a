package retry

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
)

// WithTimeout races fn against a deadline of d. When the deadline wins it
// returns an *apperr.TimeoutError naming op; fn keeps its context, which is
// canceled, but is not waited for. A non-positive d disables the deadline.
func WithTimeout(ctx context.Context, op string, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &apperr.TimeoutError{Op: op, After: d}
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &apperr.TimeoutError{Op: op, After: d}
		}
		return ctx.Err()
	}
}

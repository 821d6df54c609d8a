package resilience

import (
	"context"
	"fmt"
	"time"
)

// CallWithTimeout runs fn under a context that expires after timeout and
// returns its value. When the deadline passes first, fn keeps running in
// its goroutine but its result is discarded; nothing it produces reaches the
// caller. A non-positive timeout calls fn directly.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, err)
		}
		return zero, fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
	}
}

// WithTimeout is CallWithTimeout for calls that only report an error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := CallWithTimeout(ctx, timeout, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Policy controls attempts and backoff growth
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy suits startup connections: a handful of attempts with
// quickly growing waits
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  5,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// Backoff doubles each attempt with up to 25% jitter.
func Do[T any](ctx context.Context, p Policy, log *slog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if log == nil {
		log = slog.Default()
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.Attempts {
			break
		}

		wait := delay + time.Duration(rand.Int63n(int64(delay)/4+1))
		log.Warn("operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, p.Attempts, lastErr)
}

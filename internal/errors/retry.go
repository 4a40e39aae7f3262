package errors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig is an exponential backoff schedule. Only offline jobs retry;
// the vector build wraps each embedding batch in one so a transient
// endpoint failure does not drop the batch. Queries never retry.
type RetryConfig struct {
	MaxRetries   int // attempts after the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter scales each wait by a random factor in [0.5, 1).
	Jitter bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 16 * time.Second, Multiplier: 2}
}

// backoff returns the wait before retry n (0-based).
func (c RetryConfig) backoff(n int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < n; i++ {
		d *= c.Multiplier
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
			break
		}
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()/2
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, the schedule runs out, or fn returns an
// ArchivistError that is not retryable.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case GetCode(err) != "" && !IsRetryable(err):
			return zero, err
		case n >= cfg.MaxRetries:
			return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		t := time.NewTimer(cfg.backoff(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}

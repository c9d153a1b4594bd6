package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/supplysql/supplysql/internal/observability"
)

// Backoff retries retryable upstream failures with capped exponential delays
// and full jitter.
type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Sleep      func(ctx context.Context, d time.Duration) error
	Jitter     func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		MaxRetries: 3,
	}
}

// Delay returns the wait before retry number attempt, counted from zero.
func (b Backoff) Delay(attempt int) time.Duration {
	ceiling := b.BaseDelay
	for i := 0; i < attempt && (b.MaxDelay <= 0 || ceiling < b.MaxDelay); i++ {
		ceiling *= 2
	}
	if b.MaxDelay > 0 && ceiling > b.MaxDelay {
		ceiling = b.MaxDelay
	}
	jitter := b.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return time.Duration(jitter() * float64(ceiling))
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. Only *UpstreamError values marked Retryable are
// retried.
func (b Backoff) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var upstream *UpstreamError
		if !errors.As(err, &upstream) || !upstream.Retryable || attempt >= b.MaxRetries {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		observability.IncrementUpstreamRetry(op)
		if sleepErr := sleep(ctx, b.Delay(attempt)); sleepErr != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

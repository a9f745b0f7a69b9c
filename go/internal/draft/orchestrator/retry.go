package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy retries an operation with exponential backoff between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	Clock       clockwork.Clock
}

// DefaultRetryPolicy makes three attempts, waiting 1s then 2s. The 4s step of the
// backoff schedule would only follow a failed third attempt, so it never runs.
func DefaultRetryPolicy(clock clockwork.Clock) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Factor:      2,
		Clock:       clock,
	}
}

// Delay is the wait after the given failed attempt (1-based): BaseDelay * Factor^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1)))
}

// Do calls op until it succeeds, returns an error retryable rejects, the attempts run out or
// ctx is done. It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error, retryable func(error) bool) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx, attempt); err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt >= p.MaxAttempts {
			return attempt, err
		}

		timer := p.Clock.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return attempt, ctx.Err()
		case <-timer.Chan():
		}
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy(clockwork.NewFakeClock())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_BacksOffBetweenAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := DefaultRetryPolicy(clock)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		attempts int
		err      error
	}
	var calls []time.Time
	done := make(chan result, 1)
	go func() {
		n, err := p.Do(ctx, func(context.Context, int) error {
			calls = append(calls, clock.Now())
			return drafterr.ErrConcurrentModification
		}, drafterr.Retryable)
		done <- result{n, err}
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	res := <-done
	assert.Equal(t, 3, res.attempts)
	assert.ErrorIs(t, res.err, drafterr.ErrConcurrentModification)
	require.Len(t, calls, 3)
	assert.Equal(t, time.Second, calls[1].Sub(calls[0]))
	assert.Equal(t, 2*time.Second, calls[2].Sub(calls[1]))
}

func TestRetryPolicy_StopsOnTerminalError(t *testing.T) {
	p := DefaultRetryPolicy(clockwork.NewFakeClock())
	calls := 0
	n, err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return drafterr.ErrNotYourTurn
	}, drafterr.Retryable)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, drafterr.ErrNotYourTurn)
}

func TestRetryPolicy_SucceedsAfterRetry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := DefaultRetryPolicy(clock)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan int, 1)
	go func() {
		n, err := p.Do(ctx, func(_ context.Context, attempt int) error {
			if attempt == 1 {
				return drafterr.ErrConcurrentModification
			}
			return nil
		}, drafterr.Retryable)
		assert.NoError(t, err)
		done <- n
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Equal(t, 2, <-done)
}

func TestRetryPolicy_CancelledWhileWaiting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := DefaultRetryPolicy(clock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, func(context.Context, int) error {
			return errors.New("transient")
		}, func(error) bool { return true })
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

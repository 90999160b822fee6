package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// RetryPolicy retries transient failures with linear backoff.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt index: 1x after the first failure,
	// 2x after the second.
	Backoff time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy allows 3 attempts, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultRetryBackoff, Sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds, fails with a non-transient error or the
// attempts run out. It returns the number of attempts made. Exhausting the
// attempts yields a TransientIO fault.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) (int, error) {
	log := logger.FromContext(ctx)

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !faults.IsTransient(err) {
			return attempt, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, faults.New(faults.TransientIO, op, fmt.Errorf("stopped after %d attempts: %w: %w", attempt, ctx.Err(), err))
		}
		if attempt == maxAttempts {
			break
		}

		wait := time.Duration(attempt) * p.Backoff
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Transient failure, retrying")

		if err := sleep(ctx, wait); err != nil {
			return attempt, faults.New(faults.TransientIO, op, fmt.Errorf("retry budget exhausted after %d attempts: %w", attempt, err))
		}
	}

	return maxAttempts, faults.New(faults.TransientIO, op, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr))
}

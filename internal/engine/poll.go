package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// PollPolicy bounds a status poll loop.
type PollPolicy struct {
	InitialInterval time.Duration // Delay before the second check
	MaxInterval     time.Duration // Maximum delay cap
	Multiplier      float64       // Exponential backoff multiplier (e.g., 1.5)
	Timeout         time.Duration // Overall bound; 0 disables it
}

// DefaultPollPolicy returns the policy used while waiting for video processing.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      1.5,
		Timeout:         5 * time.Minute,
	}
}

// PollFunc checks a remote state once. It reports done when the awaited
// condition holds; a non-nil error stops polling.
type PollFunc func(ctx context.Context) (done bool, err error)

// Poll calls fn until it reports done, fails, the parent context ends, or the
// policy timeout elapses. The timeout surfaces as ErrProcessingTimeout.
func Poll(ctx context.Context, policy PollPolicy, fn PollFunc, onWait func(attempt int, delay time.Duration)) error {
	pollCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	timedOut := func() bool {
		return ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded)
	}

	for attempt := 0; ; attempt++ {
		done, err := fn(pollCtx)
		if err != nil {
			if timedOut() {
				return fmt.Errorf("%w after %s", ErrProcessingTimeout, policy.Timeout)
			}
			return err
		}
		if done {
			return nil
		}

		delay := calculateDelay(policy, attempt)
		if onWait != nil {
			onWait(attempt+1, delay)
		}

		select {
		case <-pollCtx.Done():
			if timedOut() {
				return fmt.Errorf("%w after %s", ErrProcessingTimeout, policy.Timeout)
			}
			return fmt.Errorf("context cancelled while polling: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// calculateDelay computes the delay before the next check.
func calculateDelay(policy PollPolicy, attempt int) time.Duration {
	initial := policy.InitialInterval
	if initial <= 0 {
		initial = DefaultPollPolicy().InitialInterval
	}
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	// Exponential backoff: initial * (multiplier ^ attempt)
	delay := float64(initial) * math.Pow(multiplier, float64(attempt))

	if policy.MaxInterval > 0 && delay > float64(policy.MaxInterval) {
		delay = float64(policy.MaxInterval)
	}
	return time.Duration(delay)
}

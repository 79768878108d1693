package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior. The crawl uses a fixed inter-attempt
// delay; exponential growth is available via Multiplier for HTTP clients.
type Policy struct {
	// Attempts is the total attempt budget, including the first try.
	// A value of 1 means no retries. Default: 3.
	Attempts int

	// Delay is the wait before each retry. Zero retries immediately.
	Delay time.Duration

	// Multiplier scales the delay after each failed attempt. A value of
	// 1.0 (or 0) keeps the delay fixed.
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// If nil, IsTransient is used.
	Retryable func(err error) bool

	// OnAttempt is called before each retry sleep with the attempt number
	// (1-based) and the error that caused it.
	OnAttempt func(attempt int, err error)
}

// FixedPolicy returns a policy with a fixed delay between attempts, the
// shape the per-page fetch retry is specified with.
func FixedPolicy(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay, Multiplier: 1.0}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 1.0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Do executes fn under the policy. Context cancellation stops retries
// immediately; the last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn under the policy and preserves the value from the
// successful attempt.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	delay := p.Delay

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !p.Retryable(lastErr) {
			return zero, lastErr
		}
		if attempt == p.Attempts {
			break
		}

		if p.OnAttempt != nil {
			p.OnAttempt(attempt, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return zero, lastErr
}

// AttemptLogger returns an OnAttempt callback that logs each retry.
func AttemptLogger(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

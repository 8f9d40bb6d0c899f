package dispatch

import (
	"fmt"
	"time"
)

// DefaultMaxAttempts counts the first attempt: one try plus three retries
const DefaultMaxAttempts = 4

// Backoff returns the wait before the retry that follows the given failed attempt (1-based).
// Implementations must never return a shorter delay for a later attempt.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff waits base, 2*base, 4*base ... capped at max
func ExponentialBackoff(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max || d <= 0 {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// polynomialCeiling keeps attempt^4 seconds inside a time.Duration
const polynomialCeiling = 300

// PolynomialBackoff waits attempt^4 + 15 seconds: 16s, 31s, 96s, 271s ... capped at max
func PolynomialBackoff(max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		if attempt > polynomialCeiling {
			return max
		}
		n := time.Duration(attempt)
		d := (n*n*n*n + 15) * time.Second
		if d > max {
			return max
		}
		return d
	}
}

// ConstantBackoff always waits d
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// RetryPolicy bounds attempts and spaces them out.
// It is plain data plus a pure Decide function, so it can be tested without a queue.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
}

// DefaultRetryPolicy allows 4 attempts, 15s apart and doubling, never more than an hour
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ExponentialBackoff(15*time.Second, time.Hour),
	}
}

// Validate checks the policy can make progress
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1 (got %d)", p.MaxAttempts)
	}
	if p.Backoff == nil {
		return fmt.Errorf("backoff is required")
	}
	if d := p.Backoff(1); d <= 0 {
		return fmt.Errorf("backoff must wait before the first retry (got %s)", d)
	}
	return nil
}

// Decision is the next step for a job after one attempt
type Decision struct {
	State State
	Delay time.Duration // set when State is Scheduled
	Err   error         // set for Exhausted and Failed
}

// Decide maps the result of attempt number attempt (1-based) to the next state
func (p RetryPolicy) Decide(attempt int, err error) Decision {
	switch {
	case err == nil:
		return Decision{State: Succeeded}
	case !IsRetryable(err):
		return Decision{State: Failed, Err: err}
	case attempt >= p.MaxAttempts:
		return Decision{
			State: Exhausted,
			Err:   fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err),
		}
	default:
		return Decision{State: Scheduled, Delay: p.Backoff(attempt)}
	}
}

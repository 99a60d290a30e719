// Package backoff provides pluggable retry delay strategies for workflow
// dispatch. All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retrying after attempt n
	// (zero-indexed). Attempt 0 is the initial dispatch, so Delay(0) is
	// the wait before the first retry.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^attempt, Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^attempt, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (additive jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter adds a bounded random offset to an exponential base.
// Delay = min(Initial * 2^attempt + random value in [0, JitterFactor * Initial), Max).
// The jitter decorrelates retries so that many executions hitting the same
// downstream outage do not wake up in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration

	// JitterFactor scales the jitter range relative to Initial.
	// 0.1 means up to 10% of Initial is added to each delay.
	JitterFactor float64
}

// NewExponentialWithJitter creates an exponential backoff with additive jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration, jitterFactor float64) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay, JitterFactor: jitterFactor}
}

// Delay returns the jittered exponential delay, capped at Max.
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * e.JitterFactor * float64(e.Initial) //nolint:gosec // jitter intentionally uses non-crypto rand
	d := time.Duration(base + jitter)
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used by the controller:
// ExponentialWithJitter with 1s initial, 30s max, and 0.1 jitter factor.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 30*time.Second, 0.1)
}

// Package hook defines the extension surface: optional observer
// interfaces that external code implements to watch dispatch outcomes,
// breaker transitions, and dead-letter sweeps.
//
// An extension implements Extension plus any subset of the observer
// interfaces. Hooks are observational: a panicking or erroring hook is
// logged and never affects the dispatch outcome.
package hook

import (
	"context"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// Extension is the base interface every hook implements.
type Extension interface {
	Name() string
}

// DispatchSucceededHook observes successful dispatches.
type DispatchSucceededHook interface {
	OnDispatchSucceeded(ctx context.Context, exec *sentinel.Execution)
}

// DispatchRetryingHook observes a failed attempt that will be retried.
type DispatchRetryingHook interface {
	OnDispatchRetrying(ctx context.Context, exec *sentinel.Execution, err error)
}

// DispatchRejectedHook observes dispatches refused before invocation,
// by the circuit breaker or the concurrency limiter.
type DispatchRejectedHook interface {
	OnDispatchRejected(ctx context.Context, exec *sentinel.Execution, code sentinel.ErrorCode)
}

// DispatchSkippedHook observes duplicate events skipped by the replay
// guard.
type DispatchSkippedHook interface {
	OnDispatchSkipped(ctx context.Context, exec *sentinel.Execution)
}

// DispatchDeadLetteredHook observes dispatches that exhausted their
// retries and were captured in the dead-letter store.
type DispatchDeadLetteredHook interface {
	OnDispatchDeadLettered(ctx context.Context, exec *sentinel.Execution, err error)
}

// BreakerStateChangedHook observes circuit breaker transitions.
type BreakerStateChangedHook interface {
	OnBreakerStateChanged(ctx context.Context, tenantID string, from, to breaker.State, reason string)
}

// DLQSweptHook observes dead-letter expiry sweeps.
type DLQSweptHook interface {
	OnDLQSwept(ctx context.Context, removed int64)
}

// ShutdownHook is called once when the controller shuts down, for
// extensions that hold resources.
type ShutdownHook interface {
	OnShutdown(ctx context.Context) error
}

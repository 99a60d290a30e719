package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// entry caches the observer interfaces one extension implements, so
// emit paths skip the type assertions.
type entry struct {
	ext Extension

	succeeded    DispatchSucceededHook
	retrying     DispatchRetryingHook
	rejected     DispatchRejectedHook
	skipped      DispatchSkippedHook
	deadLettered DispatchDeadLetteredHook
	breakerState BreakerStateChangedHook
	dlqSwept     DLQSweptHook
	shutdown     ShutdownHook
}

// Registry holds registered extensions and fans events out to them in
// registration order. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension. The interfaces it implements are
// resolved once here.
func (r *Registry) Register(ext Extension) {
	e := entry{ext: ext}
	e.succeeded, _ = ext.(DispatchSucceededHook)
	e.retrying, _ = ext.(DispatchRetryingHook)
	e.rejected, _ = ext.(DispatchRejectedHook)
	e.skipped, _ = ext.(DispatchSkippedHook)
	e.deadLettered, _ = ext.(DispatchDeadLetteredHook)
	e.breakerState, _ = ext.(BreakerStateChangedHook)
	e.dlqSwept, _ = ext.(DLQSweptHook)
	e.shutdown, _ = ext.(ShutdownHook)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Names returns the registered extension names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.ext.Name())
	}
	return names
}

// EmitDispatchSucceeded notifies success observers.
func (r *Registry) EmitDispatchSucceeded(ctx context.Context, exec *sentinel.Execution) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.succeeded != nil {
			r.safeCall(e.ext.Name(), "dispatch_succeeded", func() {
				e.succeeded.OnDispatchSucceeded(ctx, exec)
			})
		}
	}
}

// EmitDispatchRetrying notifies retry observers.
func (r *Registry) EmitDispatchRetrying(ctx context.Context, exec *sentinel.Execution, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.retrying != nil {
			r.safeCall(e.ext.Name(), "dispatch_retrying", func() {
				e.retrying.OnDispatchRetrying(ctx, exec, err)
			})
		}
	}
}

// EmitDispatchRejected notifies rejection observers.
func (r *Registry) EmitDispatchRejected(ctx context.Context, exec *sentinel.Execution, code sentinel.ErrorCode) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.rejected != nil {
			r.safeCall(e.ext.Name(), "dispatch_rejected", func() {
				e.rejected.OnDispatchRejected(ctx, exec, code)
			})
		}
	}
}

// EmitDispatchSkipped notifies duplicate-skip observers.
func (r *Registry) EmitDispatchSkipped(ctx context.Context, exec *sentinel.Execution) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.skipped != nil {
			r.safeCall(e.ext.Name(), "dispatch_skipped", func() {
				e.skipped.OnDispatchSkipped(ctx, exec)
			})
		}
	}
}

// EmitDispatchDeadLettered notifies dead-letter observers.
func (r *Registry) EmitDispatchDeadLettered(ctx context.Context, exec *sentinel.Execution, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.deadLettered != nil {
			r.safeCall(e.ext.Name(), "dispatch_dead_lettered", func() {
				e.deadLettered.OnDispatchDeadLettered(ctx, exec, err)
			})
		}
	}
}

// EmitBreakerStateChanged notifies breaker transition observers.
// Satisfies breaker.Emitter.
func (r *Registry) EmitBreakerStateChanged(ctx context.Context, tenantID string, from, to breaker.State, reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.breakerState != nil {
			r.safeCall(e.ext.Name(), "breaker_state_changed", func() {
				e.breakerState.OnBreakerStateChanged(ctx, tenantID, from, to, reason)
			})
		}
	}
}

// EmitDLQSwept notifies sweep observers. Satisfies dlq.Emitter.
func (r *Registry) EmitDLQSwept(ctx context.Context, removed int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.dlqSwept != nil {
			r.safeCall(e.ext.Name(), "dlq_swept", func() {
				e.dlqSwept.OnDLQSwept(ctx, removed)
			})
		}
	}
}

// Shutdown calls every ShutdownHook in registration order. Hook errors
// are logged and do not stop the remaining hooks.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.shutdown != nil {
			name := e.ext.Name()
			r.safeCall(name, "shutdown", func() {
				if err := e.shutdown.OnShutdown(ctx); err != nil {
					r.logger.Error("extension shutdown failed",
						slog.String("extension", name),
						slog.String("error", err.Error()),
					)
				}
			})
		}
	}
}

// safeCall runs one hook, converting a panic into a log line.
func (r *Registry) safeCall(ext, hook string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("extension hook panicked",
				slog.String("extension", ext),
				slog.String("hook", hook),
				slog.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	fn()
}

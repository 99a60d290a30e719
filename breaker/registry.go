package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/sentinel"
)

// Settings are the breaker parameters for a single tenant, resolved by
// the caller from tenant.Config before each check.
type Settings struct {
	// Threshold is the failure count within Window that opens the circuit.
	Threshold int
	// Window is the rolling failure-count window.
	Window time.Duration
	// Recovery is how long an open circuit waits before a half-open trial.
	Recovery time.Duration
}

// Emitter receives breaker state change notifications.
// hook.Registry satisfies this interface via EmitBreakerStateChanged.
type Emitter interface {
	EmitBreakerStateChanged(ctx context.Context, tenantID string, from, to State, reason string)
}

// entry is the in-memory runtime state for one tenant's breaker.
// entry.mu is the per-tenant lock: all read-check-mutate sequences for a
// tenant happen under it, never under a registry-wide lock.
type entry struct {
	mu            sync.Mutex
	st            *TenantState
	probeInFlight bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEmitter sets the state change emitter.
func WithEmitter(e Emitter) RegistryOption {
	return func(r *Registry) { r.emitter = e }
}

// Registry manages one circuit breaker per tenant. Safe for concurrent
// use; operations for distinct tenants never block each other.
type Registry struct {
	store   Store
	logger  *slog.Logger
	emitter Emitter

	mu      sync.Mutex
	tenants map[string]*entry
}

// NewRegistry creates a breaker registry over the given store.
func NewRegistry(store Store, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:   store,
		logger:  logger,
		tenants: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow reports whether a dispatch for the tenant may proceed.
// Returns nil when admitted, sentinel.ErrCircuitOpen when the circuit is
// open or a half-open probe is already in flight. An open circuit whose
// recovery period has elapsed transitions to half-open and admits the
// caller as the single trial execution.
func (r *Registry) Allow(ctx context.Context, tenantID string, s Settings) error {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := r.load(ctx, e, tenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	switch st.State {
	case StateClosed:
		r.rollWindow(st, s, now)
		return nil

	case StateOpen:
		if st.OpenedAt != nil && now.Sub(*st.OpenedAt) >= s.Recovery {
			r.transition(ctx, e, StateHalfOpen, "recovery period elapsed")
			e.probeInFlight = true
			return nil
		}
		return sentinel.ErrCircuitOpen

	case StateHalfOpen:
		if e.probeInFlight {
			// Concurrent requests during half-open fail fast to avoid a
			// thundering-herd probe.
			return sentinel.ErrCircuitOpen
		}
		e.probeInFlight = true
		return nil
	}

	return nil
}

// OnSuccess records a successful engine invocation for the tenant.
// A half-open probe success closes the circuit and restarts the window.
func (r *Registry) OnSuccess(ctx context.Context, tenantID string, s Settings) {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := r.load(ctx, e, tenantID)
	if err != nil {
		return
	}

	now := time.Now().UTC()

	switch st.State {
	case StateHalfOpen:
		e.probeInFlight = false
		st.FailureCount = 0
		st.WindowStart = now
		st.OpenedAt = nil
		r.transition(ctx, e, StateClosed, "trial execution succeeded")
	case StateClosed:
		// Failure counts reset lazily when the window rolls over, not on
		// every success.
		r.rollWindow(st, s, now)
	}
}

// OnFailure records a failed engine invocation for the tenant.
// The threshold-th failure within the window opens the circuit; a
// half-open probe failure re-opens it and restarts the recovery clock.
func (r *Registry) OnFailure(ctx context.Context, tenantID string, s Settings) {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := r.load(ctx, e, tenantID)
	if err != nil {
		return
	}

	now := time.Now().UTC()

	switch st.State {
	case StateHalfOpen:
		e.probeInFlight = false
		st.OpenedAt = &now
		st.FailureCount = 0
		st.WindowStart = now
		r.transition(ctx, e, StateOpen, "trial execution failed")

	case StateClosed:
		r.rollWindow(st, s, now)
		st.FailureCount++
		if st.FailureCount >= s.Threshold {
			st.OpenedAt = &now
			r.transition(ctx, e, StateOpen, "failure threshold reached")
			return
		}
		r.persist(ctx, st)
	}
}

// ReleaseProbe abandons a half-open probe slot without recording an
// outcome. Called when a probe was admitted but the execution never
// reached the engine (e.g. the concurrency limiter rejected it).
func (r *Registry) ReleaseProbe(tenantID string) {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probeInFlight = false
}

// Reset is the administrative forced reset: the tenant's circuit returns
// to closed regardless of its current state, with a fresh window.
func (r *Registry) Reset(ctx context.Context, tenantID, reason string) error {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := r.load(ctx, e, tenantID)
	if err != nil {
		return err
	}

	e.probeInFlight = false
	st.FailureCount = 0
	st.WindowStart = time.Now().UTC()
	st.OpenedAt = nil
	if reason == "" {
		reason = "manual reset"
	}
	r.transition(ctx, e, StateClosed, reason)
	return nil
}

// Snapshot returns a copy of the tenant's breaker state, loading it from
// the store if the tenant has not been seen by this process yet.
func (r *Registry) Snapshot(ctx context.Context, tenantID string) (*TenantState, error) {
	e := r.entry(tenantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := r.load(ctx, e, tenantID)
	if err != nil {
		return nil, err
	}
	cp := *st
	return &cp, nil
}

// TenantIDs returns the tenants with live breaker state in this process.
func (r *Registry) TenantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}

// entry returns the per-tenant entry, creating it if needed. Only the
// map lookup holds the registry-wide lock; all state work happens under
// the entry's own mutex.
func (r *Registry) entry(tenantID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tenants[tenantID]
	if !ok {
		e = &entry{}
		r.tenants[tenantID] = e
	}
	return e
}

// load populates the entry from the store on first access. Must be
// called with e.mu held.
func (r *Registry) load(ctx context.Context, e *entry, tenantID string) (*TenantState, error) {
	if e.st != nil {
		return e.st, nil
	}

	st, err := r.store.GetBreaker(ctx, tenantID)
	switch {
	case err == nil:
		e.st = st
	case errors.Is(err, sentinel.ErrBreakerNotFound):
		e.st = &TenantState{
			Entity:      sentinel.NewEntity(),
			TenantID:    tenantID,
			State:       StateClosed,
			WindowStart: time.Now().UTC(),
		}
		r.persist(ctx, e.st)
	default:
		r.logger.Error("breaker state load failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return e.st, nil
}

// rollWindow resets the failure count when the rolling window has
// elapsed. Must be called with the entry lock held.
func (r *Registry) rollWindow(st *TenantState, s Settings, now time.Time) {
	if s.Window > 0 && now.Sub(st.WindowStart) >= s.Window {
		st.WindowStart = now
		st.FailureCount = 0
	}
}

// transition moves the entry's state machine to the new state, logs the
// transition, persists it, and notifies the emitter. Must be called with
// the entry lock held.
func (r *Registry) transition(ctx context.Context, e *entry, to State, reason string) {
	st := e.st
	from := st.State
	st.State = to

	r.logger.Info("circuit breaker state change",
		slog.String("tenant_id", st.TenantID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("reason", reason),
		slog.Int("failure_count", st.FailureCount),
	)

	r.persist(ctx, st)

	if r.emitter != nil {
		r.emitter.EmitBreakerStateChanged(ctx, st.TenantID, from, to, reason)
	}
}

// persist writes the state through to the store. Write failures are
// logged and do not fail the dispatch: the in-memory state remains
// authoritative for this process.
func (r *Registry) persist(ctx context.Context, st *TenantState) {
	st.UpdatedAt = time.Now().UTC()
	cp := *st
	if err := r.store.SaveBreaker(ctx, &cp); err != nil {
		r.logger.Error("breaker state persist failed",
			slog.String("tenant_id", st.TenantID),
			slog.String("error", err.Error()),
		)
	}
}

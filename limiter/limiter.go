// Package limiter provides per-tenant and global concurrency admission
// for dispatches. Acquisition is non-blocking: a dispatch that would
// exceed either limit is rejected immediately rather than queued.
package limiter

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/sentinel"
)

// tenantSlots tracks live executions and an optional dispatch-rate
// bucket for one tenant.
type tenantSlots struct {
	inFlight int
	rl       *rate.Limiter
}

// Snapshot is a point-in-time view of one tenant's slot usage.
type Snapshot struct {
	TenantID string `json:"tenant_id"`
	InFlight int    `json:"in_flight"`
	Limit    int    `json:"limit"`
}

// Limiter enforces a per-tenant slot limit and a process-wide global
// cap. Counters are process-local; they are not persisted.
type Limiter struct {
	mu             sync.Mutex
	globalLimit    int
	globalInFlight int
	tenants        map[string]*tenantSlots
}

// New creates a limiter with the given global cap. A non-positive cap
// disables the global limit.
func New(globalLimit int) *Limiter {
	return &Limiter{
		globalLimit: globalLimit,
		tenants:     make(map[string]*tenantSlots),
	}
}

// SetRate installs a token-bucket dispatch rate for the tenant.
// A non-positive perSecond removes any existing bucket.
func (l *Limiter) SetRate(tenantID string, perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.slots(tenantID)
	if perSecond <= 0 {
		ts.rl = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	ts.rl = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Acquire claims one execution slot for the tenant, checking the tenant
// limit, the global cap, and the tenant's rate bucket in that order.
// Returns sentinel.ErrConcurrencyExhausted when any check fails; the
// caller must not Release after a failed Acquire.
func (l *Limiter) Acquire(tenantID string, tenantLimit int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.slots(tenantID)

	if tenantLimit > 0 && ts.inFlight >= tenantLimit {
		return sentinel.ErrConcurrencyExhausted
	}
	if l.globalLimit > 0 && l.globalInFlight >= l.globalLimit {
		return sentinel.ErrConcurrencyExhausted
	}
	if ts.rl != nil && !ts.rl.Allow() {
		return sentinel.ErrConcurrencyExhausted
	}

	ts.inFlight++
	l.globalInFlight++
	return nil
}

// Release returns one slot for the tenant. Calling Release without a
// matching successful Acquire is a no-op.
func (l *Limiter) Release(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts, ok := l.tenants[tenantID]
	if !ok || ts.inFlight == 0 {
		return
	}
	ts.inFlight--
	l.globalInFlight--
}

// InFlight reports the live execution count for one tenant.
func (l *Limiter) InFlight(tenantID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts, ok := l.tenants[tenantID]
	if !ok {
		return 0
	}
	return ts.inFlight
}

// GlobalInFlight reports the live execution count across all tenants.
func (l *Limiter) GlobalInFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalInFlight
}

// GlobalLimit reports the process-wide cap.
func (l *Limiter) GlobalLimit() int {
	return l.globalLimit
}

// Snapshots returns the slot usage of every tenant seen by this
// process, with the limit column filled in by the caller-supplied
// resolver (tenant limits live in tenant config, not here).
func (l *Limiter) Snapshots(limitFor func(tenantID string) int) []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Snapshot, 0, len(l.tenants))
	for tenantID, ts := range l.tenants {
		limit := 0
		if limitFor != nil {
			limit = limitFor(tenantID)
		}
		out = append(out, Snapshot{
			TenantID: tenantID,
			InFlight: ts.inFlight,
			Limit:    limit,
		})
	}
	return out
}

func (l *Limiter) slots(tenantID string) *tenantSlots {
	ts, ok := l.tenants[tenantID]
	if !ok {
		ts = &tenantSlots{}
		l.tenants[tenantID] = ts
	}
	return ts
}

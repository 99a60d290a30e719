package breaker

import (
	"context"
	"time"

	"github.com/xraph/sentinel"
)

// State is a circuit breaker state.
type State string

const (
	// StateClosed admits dispatches and counts failures.
	StateClosed State = "closed"
	// StateOpen rejects all dispatches without contacting the engine.
	StateOpen State = "open"
	// StateHalfOpen admits exactly one trial execution.
	StateHalfOpen State = "half_open"
)

// TenantState is the persisted breaker record for one tenant. It is owned
// exclusively by the Registry and mutated only through atomic transitions
// under the tenant's lock. Created lazily on first dispatch; never
// deleted, only reset.
type TenantState struct {
	sentinel.Entity

	TenantID     string     `json:"tenant_id"`
	State        State      `json:"state"`
	FailureCount int        `json:"failure_count"`
	WindowStart  time.Time  `json:"window_start"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
}

// Store defines the persistence contract for breaker state.
type Store interface {
	// GetBreaker retrieves the breaker state for a tenant. Returns
	// sentinel.ErrBreakerNotFound when the tenant has never dispatched.
	GetBreaker(ctx context.Context, tenantID string) (*TenantState, error)

	// SaveBreaker creates or replaces a tenant's breaker state.
	SaveBreaker(ctx context.Context, st *TenantState) error
}

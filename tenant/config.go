// Package tenant defines per-tenant reliability configuration and its
// persistence contract. Configs are externally administered: the dispatch
// pipeline only reads them, falling back to documented defaults for
// tenants with no explicit row.
package tenant

import (
	"context"
	"time"

	"github.com/xraph/sentinel"
)

// Config holds the reliability settings for a single tenant. All fields
// are explicit and typed; a zero field means "use the default".
type Config struct {
	sentinel.Entity

	// TenantID is the tenant this config applies to.
	TenantID string `json:"tenant_id"`

	// ConcurrencyLimit caps simultaneous in-flight executions for this
	// tenant. Default 5.
	ConcurrencyLimit int `json:"concurrency_limit"`

	// RateLimit is the sustained executions per second admitted for this
	// tenant. Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit,omitempty"`

	// RateBurst is the burst size for the tenant's token bucket.
	// Defaults to 1 when RateLimit is set.
	RateBurst int `json:"rate_burst,omitempty"`

	// BreakerThreshold is the failure count within BreakerWindow that
	// opens the tenant's circuit. Default 10.
	BreakerThreshold int `json:"breaker_threshold"`

	// BreakerWindow is the rolling failure-count window. Default 10m.
	BreakerWindow time.Duration `json:"breaker_window"`

	// BreakerRecovery is how long an open circuit waits before a
	// half-open trial. Default 5m.
	BreakerRecovery time.Duration `json:"breaker_recovery"`

	// MaxRetries is the retry budget per dispatch. Default 3.
	MaxRetries int `json:"max_retries"`
}

// Defaults returns a Config carrying the documented default values for
// the given tenant. Used when the store has no row for the tenant.
func Defaults(tenantID string) Config {
	return Config{
		TenantID:         tenantID,
		ConcurrencyLimit: 5,
		BreakerThreshold: 10,
		BreakerWindow:    10 * time.Minute,
		BreakerRecovery:  5 * time.Minute,
		MaxRetries:       3,
	}
}

// Normalize fills zero fields from the defaults so callers never have to
// branch on unset values.
func (c Config) Normalize() Config {
	def := Defaults(c.TenantID)
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = def.ConcurrencyLimit
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = def.BreakerThreshold
	}
	if c.BreakerWindow <= 0 {
		c.BreakerWindow = def.BreakerWindow
	}
	if c.BreakerRecovery <= 0 {
		c.BreakerRecovery = def.BreakerRecovery
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	return c
}

// Store defines the persistence contract for tenant configuration.
type Store interface {
	// GetTenantConfig retrieves the config for a tenant. Returns
	// sentinel.ErrTenantNotFound when no explicit config exists.
	GetTenantConfig(ctx context.Context, tenantID string) (*Config, error)

	// SaveTenantConfig creates or replaces a tenant's config.
	SaveTenantConfig(ctx context.Context, cfg *Config) error

	// ListTenantConfigs returns all explicitly configured tenants.
	ListTenantConfigs(ctx context.Context) ([]*Config, error)
}

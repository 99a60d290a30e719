package sentinel

import "time"

// Config holds process-wide configuration for the reliability controller.
// Per-tenant overrides live in tenant.Config.
type Config struct {
	// MaxRetries is the default retry budget per dispatch. A dispatch
	// makes at most MaxRetries+1 engine invocations.
	MaxRetries int

	// ExecutionTimeout bounds a single engine invocation.
	ExecutionTimeout time.Duration

	// GlobalConcurrency caps concurrent executions across all tenants
	// combined, protecting shared downstream capacity.
	GlobalConcurrency int

	// TenantConcurrency is the default per-tenant concurrency limit,
	// used when a tenant has no explicit config.
	TenantConcurrency int

	// BreakerThreshold is the default failure count that opens a
	// tenant's circuit within the rolling window.
	BreakerThreshold int

	// BreakerWindow is the rolling window for failure counting.
	BreakerWindow time.Duration

	// BreakerRecovery is how long an open circuit waits before
	// permitting a half-open trial execution.
	BreakerRecovery time.Duration

	// DLQTTL is how long dead letter messages are retained.
	DLQTTL time.Duration

	// SweepSchedule is the cron expression for the DLQ expiry sweep.
	// Supports standard 5-field expressions and descriptors like
	// "@hourly" or "@every 30m".
	SweepSchedule string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		ExecutionTimeout:  30 * time.Second,
		GlobalConcurrency: 20,
		TenantConcurrency: 5,
		BreakerThreshold:  10,
		BreakerWindow:     10 * time.Minute,
		BreakerRecovery:   5 * time.Minute,
		DLQTTL:            24 * time.Hour,
		SweepSchedule:     "@hourly",
	}
}

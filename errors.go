package sentinel

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("sentinel: no store configured")
	ErrStoreClosed     = errors.New("sentinel: store closed")
	ErrMigrationFailed = errors.New("sentinel: migration failed")

	// Not found errors.
	ErrDLQNotFound     = errors.New("sentinel: dlq message not found")
	ErrTenantNotFound  = errors.New("sentinel: tenant config not found")
	ErrBreakerNotFound = errors.New("sentinel: breaker state not found")
	ErrReplayNotFound  = errors.New("sentinel: replay record not found")

	// Dispatch rejection errors.
	ErrCircuitOpen          = errors.New("sentinel: circuit open")
	ErrConcurrencyExhausted = errors.New("sentinel: concurrency exhausted")
	ErrMaxRetriesExceeded   = errors.New("sentinel: max retries exceeded")

	// Conflict errors.
	ErrReplayConflict = errors.New("sentinel: replay record already set")

	// Wiring errors.
	ErrNoInvoker = errors.New("sentinel: no engine invoker configured")
)

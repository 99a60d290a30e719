package sentinel

import (
	"time"

	"github.com/xraph/sentinel/id"
)

// Execution is the mutable record of a single workflow dispatch moving
// through the reliability pipeline. The attempt counter is data, not call
// stack depth: the controller drives the retry loop over this struct.
type Execution struct {
	Entity

	ID           id.ExecutionID `json:"id"`
	TenantID     string         `json:"tenant_id"`
	WorkflowName string         `json:"workflow_name"`
	Payload      []byte         `json:"payload"`

	// EventID identifies the external event (e.g. a payment webhook
	// delivery) that triggered this execution. Empty means the dispatch
	// is not replay-guarded.
	EventID string `json:"event_id,omitempty"`

	// Attempt is the zero-indexed attempt number. Attempt 0 is the
	// initial dispatch; attempts 1..MaxRetries are retries.
	Attempt    int    `json:"attempt"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`

	// Timeout bounds a single engine invocation. Zero means no deadline
	// beyond the caller's context.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ErrorCode classifies a dispatch outcome for callers. Codes are stable
// strings suitable for API responses and metrics attributes.
type ErrorCode string

const (
	// CodeCircuitOpen means the tenant's circuit breaker rejected the
	// dispatch before the engine was contacted.
	CodeCircuitOpen ErrorCode = "circuit_open"
	// CodeConcurrencyExhausted means no concurrency slot was available
	// for the tenant (or globally).
	CodeConcurrencyExhausted ErrorCode = "concurrency_exhausted"
	// CodeRetriesExhausted means every attempt failed and the execution
	// was moved to the dead letter queue.
	CodeRetriesExhausted ErrorCode = "retries_exhausted"
	// CodeCancelled means the caller cancelled the execution mid-flight.
	// Cancellation is not a failure: no DLQ entry is written and no
	// breaker failure is recorded.
	CodeCancelled ErrorCode = "cancelled"
	// CodeInternal means a sentinel-internal operation (e.g. a DLQ write)
	// failed. Storage detail is logged, never surfaced.
	CodeInternal ErrorCode = "internal"
)

// Result is the structured outcome of a dispatch. The controller never
// panics or returns a bare error across its public boundary; every call
// produces a Result.
type Result struct {
	Success bool `json:"success"`

	// Skipped is set when the dispatch was an idempotent no-op because
	// the event was already processed. Skipped implies Success.
	Skipped bool `json:"skipped,omitempty"`

	// DLQID references the dead letter message created when retries
	// exhausted. Nil otherwise.
	DLQID id.DLQID `json:"dlq_id,omitempty"`

	// Attempts is the number of engine invocations actually made.
	Attempts int `json:"attempts"`

	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Err       error     `json:"-"`
}

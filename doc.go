// Package sentinel provides a tenant-aware reliability control layer for
// dispatching workflow executions to an external workflow engine. It
// combines per-tenant circuit breaking, bounded concurrency, idempotent
// event handling, retry with backoff, and a TTL-bound dead letter queue
// into a single dispatch pipeline.
//
// Sentinel is designed as a library, not a service. Construct a Controller
// with a store and an engine invoker, then route every workflow execution
// through it:
//
//	ctrl, err := controller.New(pgStore, engineClient,
//	    controller.WithConfig(sentinel.DefaultConfig()),
//	)
//	res := ctrl.Dispatch(ctx, controller.Request{
//	    TenantID:     "org_acme",
//	    WorkflowName: "invoice.finalize",
//	    Payload:      payload,
//	    EventID:      webhookEventID,
//	})
//
// # Architecture
//
// Sentinel follows a composable store pattern where each subsystem
// (breaker, replay, dlq, tenant) defines its own store interface. A single
// backend implements all of them. All reliability state is keyed strictly
// by tenant: a failure storm in one tenant never alters another tenant's
// breaker, concurrency, or DLQ state.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package sentinel

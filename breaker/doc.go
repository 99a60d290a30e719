// Package breaker implements per-tenant circuit breaking for workflow
// dispatch. Each tenant owns an independent three-state machine
// (closed → open → half-open) driven by a rolling failure window.
//
// The registry holds one entry per tenant, each guarded by its own mutex,
// so a failure storm in one tenant never contends with — or alters —
// another tenant's state. State is loaded lazily from the store on first
// dispatch and written through on every transition, so breakers survive
// process restarts.
package breaker

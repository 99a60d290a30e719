// Package store defines the aggregate persistence interface. Each
// subsystem (breaker, dlq, replay, tenant) defines its own store
// interface; the composite Store composes them all. Backends:
// Postgres, Bun, Mongo, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/tenant"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// implements all of them.
type Store interface {
	breaker.Store
	dlq.Store
	replay.Store
	tenant.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

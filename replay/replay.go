// Package replay provides idempotent event processing: each (tenant,
// event) pair is recorded exactly once, and a duplicate dispatch of an
// already-processed event is skipped rather than re-executed.
package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/sentinel"
)

// Record marks one event as processed for one tenant.
type Record struct {
	sentinel.Entity

	TenantID     string    `json:"tenant_id"`
	EventID      string    `json:"event_id"`
	WorkflowName string    `json:"workflow_name"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// ListOpts filters replay record listings.
type ListOpts struct {
	TenantID string
	Limit    int
	Offset   int
}

// Store persists replay records.
//
// MarkProcessed is the atomic claim: it inserts the record only if no
// record for (TenantID, EventID) exists, and reports whether this call
// created it. Under concurrent calls for the same pair, exactly one
// caller observes true.
type Store interface {
	MarkProcessed(ctx context.Context, rec *Record) (bool, error)
	IsProcessed(ctx context.Context, tenantID, eventID string) (bool, error)
	GetReplay(ctx context.Context, tenantID, eventID string) (*Record, error)
	ListReplay(ctx context.Context, opts ListOpts) ([]*Record, error)
	DeleteReplay(ctx context.Context, tenantID, eventID string) error
	PurgeReplay(ctx context.Context, tenantID string) (int64, error)
}

// Guard answers "has this event been processed?" for the dispatch
// pipeline and records completions.
type Guard struct {
	store  Store
	logger *slog.Logger
}

// NewGuard creates a guard over the given store.
func NewGuard(store Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, logger: logger}
}

// IsDuplicate reports whether the event was already processed. Events
// without an ID are never duplicates.
func (g *Guard) IsDuplicate(ctx context.Context, tenantID, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	return g.store.IsProcessed(ctx, tenantID, eventID)
}

// MarkProcessed records the event as processed after a successful
// dispatch. Returns false when another dispatch recorded it first; the
// losing caller treats its work as already done.
func (g *Guard) MarkProcessed(ctx context.Context, tenantID, eventID, workflowName string) (bool, error) {
	if eventID == "" {
		return true, nil
	}

	rec := &Record{
		Entity:       sentinel.NewEntity(),
		TenantID:     tenantID,
		EventID:      eventID,
		WorkflowName: workflowName,
		ProcessedAt:  time.Now().UTC(),
	}

	created, err := g.store.MarkProcessed(ctx, rec)
	if err != nil {
		return false, err
	}
	if !created {
		g.logger.Debug("event already marked processed",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", eventID),
		)
	}
	return created, nil
}

package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/replay"
)

// MarkProcessed inserts a replay record unless one already exists for
// the (tenant, event) pair. The conflict clause makes the claim atomic:
// under concurrent inserts exactly one caller sees a row written.
func (s *Store) MarkProcessed(ctx context.Context, rec *replay.Record) (bool, error) {
	m := toReplayModel(rec)
	res, err := s.db.NewInsert().Model(m).
		On("CONFLICT (tenant_id, event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("sentinel/bun: mark processed: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows > 0, nil
}

// IsProcessed reports whether the event was recorded for the tenant.
func (s *Store) IsProcessed(ctx context.Context, tenantID, eventID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*replayModel)(nil)).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("sentinel/bun: is processed: %w", err)
	}
	return exists, nil
}

// GetReplay retrieves one replay record.
func (s *Store) GetReplay(ctx context.Context, tenantID, eventID string) (*replay.Record, error) {
	m := new(replayModel)
	err := s.db.NewSelect().Model(m).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrReplayNotFound
		}
		return nil, fmt.Errorf("sentinel/bun: get replay: %w", err)
	}
	return fromReplayModel(m), nil
}

// ListReplay returns replay records, newest first.
func (s *Store) ListReplay(ctx context.Context, opts replay.ListOpts) ([]*replay.Record, error) {
	var models []replayModel
	q := s.db.NewSelect().Model(&models)

	if opts.TenantID != "" {
		q = q.Where("tenant_id = ?", opts.TenantID)
	}

	q = q.Order("processed_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sentinel/bun: list replay: %w", err)
	}

	recs := make([]*replay.Record, 0, len(models))
	for i := range models {
		recs = append(recs, fromReplayModel(&models[i]))
	}
	return recs, nil
}

// DeleteReplay removes one replay record.
func (s *Store) DeleteReplay(ctx context.Context, tenantID, eventID string) error {
	res, err := s.db.NewDelete().
		TableExpr("sentinel_replays").
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel/bun: delete replay: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return sentinel.ErrReplayNotFound
	}
	return nil
}

// PurgeReplay removes every replay record for a tenant.
func (s *Store) PurgeReplay(ctx context.Context, tenantID string) (int64, error) {
	res, err := s.db.NewDelete().
		TableExpr("sentinel_replays").
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel/bun: purge replay: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

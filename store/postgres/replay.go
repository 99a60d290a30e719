package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/replay"
)

// MarkProcessed atomically claims the (tenant, event) pair. The insert
// races on the primary key; ON CONFLICT DO NOTHING means exactly one
// writer observes a row inserted.
func (s *Store) MarkProcessed(ctx context.Context, rec *replay.Record) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sentinel_replays (
			tenant_id, event_id, workflow_name, processed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, event_id) DO NOTHING`,
		rec.TenantID, rec.EventID, rec.WorkflowName, rec.ProcessedAt,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("sentinel/postgres: mark processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsProcessed reports whether the (tenant, event) pair has a record.
func (s *Store) IsProcessed(ctx context.Context, tenantID, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sentinel_replays WHERE tenant_id = $1 AND event_id = $2)`,
		tenantID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sentinel/postgres: is processed: %w", err)
	}
	return exists, nil
}

// GetReplay retrieves a replay record by tenant and event.
func (s *Store) GetReplay(ctx context.Context, tenantID, eventID string) (*replay.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, event_id, workflow_name, processed_at, created_at, updated_at
		FROM sentinel_replays
		WHERE tenant_id = $1 AND event_id = $2`,
		tenantID, eventID,
	)
	rec, err := scanReplay(row)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrReplayNotFound
		}
		return nil, fmt.Errorf("sentinel/postgres: get replay: %w", err)
	}
	return rec, nil
}

// ListReplay returns replay records matching the given options.
func (s *Store) ListReplay(ctx context.Context, opts replay.ListOpts) ([]*replay.Record, error) {
	query := `
		SELECT tenant_id, event_id, workflow_name, processed_at, created_at, updated_at
		FROM sentinel_replays
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}

	query += " ORDER BY tenant_id ASC, event_id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sentinel/postgres: list replay: %w", err)
	}
	defer rows.Close()

	var recs []*replay.Record
	for rows.Next() {
		r, scanErr := scanReplay(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("sentinel/postgres: scan replay row: %w", scanErr)
		}
		recs = append(recs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sentinel/postgres: iterate replay rows: %w", err)
	}
	return recs, nil
}

// DeleteReplay removes a single replay record.
func (s *Store) DeleteReplay(ctx context.Context, tenantID, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sentinel_replays WHERE tenant_id = $1 AND event_id = $2`,
		tenantID, eventID,
	)
	if err != nil {
		return fmt.Errorf("sentinel/postgres: delete replay: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrReplayNotFound
	}
	return nil
}

// PurgeReplay removes all replay records for a tenant.
func (s *Store) PurgeReplay(ctx context.Context, tenantID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sentinel_replays WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("sentinel/postgres: purge replay: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReplay(row pgx.Row) (*replay.Record, error) {
	var rec replay.Record
	err := row.Scan(
		&rec.TenantID, &rec.EventID, &rec.WorkflowName, &rec.ProcessedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// PushDLQ adds a dead-lettered execution to the store.
func (s *Store) PushDLQ(ctx context.Context, msg *dlq.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sentinel_dlq (
			id, tenant_id, workflow_name, event_id, payload,
			error_message, error_code, retry_count, expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		msg.ID.String(), msg.TenantID, msg.WorkflowName, msg.EventID, msg.Payload,
		msg.ErrorMessage, msg.ErrorCode, msg.RetryCount, msg.ExpiresAt,
		msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sentinel/postgres: push dlq: %w", err)
	}
	return nil
}

// GetDLQ retrieves a dead-letter message by ID.
func (s *Store) GetDLQ(ctx context.Context, msgID id.DLQID) (*dlq.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, workflow_name, event_id, payload,
			error_message, error_code, retry_count, expires_at,
			created_at, updated_at
		FROM sentinel_dlq
		WHERE id = $1`,
		msgID.String(),
	)
	msg, err := scanDLQ(row)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrDLQNotFound
		}
		return nil, fmt.Errorf("sentinel/postgres: get dlq: %w", err)
	}
	return msg, nil
}

// ListDLQ returns dead-letter messages matching the given options,
// newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	query := `
		SELECT id, tenant_id, workflow_name, event_id, payload,
			error_message, error_code, retry_count, expires_at,
			created_at, updated_at
		FROM sentinel_dlq
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("sentinel/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var msgs []*dlq.Message
	for rows.Next() {
		m, scanErr := scanDLQ(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("sentinel/postgres: scan dlq row: %w", scanErr)
		}
		msgs = append(msgs, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sentinel/postgres: iterate dlq rows: %w", err)
	}
	return msgs, nil
}

// UpdateDLQ replaces a stored dead-letter message.
func (s *Store) UpdateDLQ(ctx context.Context, msg *dlq.Message) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sentinel_dlq SET
			tenant_id = $2, workflow_name = $3, event_id = $4, payload = $5,
			error_message = $6, error_code = $7, retry_count = $8,
			expires_at = $9, updated_at = $10
		WHERE id = $1`,
		msg.ID.String(), msg.TenantID, msg.WorkflowName, msg.EventID, msg.Payload,
		msg.ErrorMessage, msg.ErrorCode, msg.RetryCount,
		msg.ExpiresAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sentinel/postgres: update dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// DeleteDLQ removes a dead-letter message by ID.
func (s *Store) DeleteDLQ(ctx context.Context, msgID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sentinel_dlq WHERE id = $1`, msgID.String())
	if err != nil {
		return fmt.Errorf("sentinel/postgres: delete dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// PurgeExpiredDLQ removes messages whose retention elapsed at now.
func (s *Store) PurgeExpiredDLQ(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sentinel_dlq WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sentinel/postgres: purge expired dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of stored messages for a tenant, or for
// all tenants when tenantID is empty.
func (s *Store) CountDLQ(ctx context.Context, tenantID string) (int64, error) {
	query := `SELECT COUNT(*) FROM sentinel_dlq`
	args := []interface{}{}
	if tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("sentinel/postgres: count dlq: %w", err)
	}
	return count, nil
}

func scanDLQ(row pgx.Row) (*dlq.Message, error) {
	var (
		m     dlq.Message
		idStr string
	)
	err := row.Scan(
		&idStr, &m.TenantID, &m.WorkflowName, &m.EventID, &m.Payload,
		&m.ErrorMessage, &m.ErrorCode, &m.RetryCount, &m.ExpiresAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseDLQID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("sentinel/postgres: parse dlq id %q: %w", idStr, parseErr)
	}
	m.ID = parsedID
	return &m, nil
}

package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// PushDLQ stores a dead-letter message.
func (s *Store) PushDLQ(ctx context.Context, msg *dlq.Message) error {
	m := toDLQModel(msg)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/bun: push dlq: %w", err)
	}
	return nil
}

// GetDLQ retrieves a dead-letter message by ID.
func (s *Store) GetDLQ(ctx context.Context, msgID id.DLQID) (*dlq.Message, error) {
	m := new(dlqModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", msgID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrDLQNotFound
		}
		return nil, fmt.Errorf("sentinel/bun: get dlq: %w", err)
	}
	return fromDLQModel(m)
}

// ListDLQ returns dead-letter messages matching the given options,
// newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	var models []dlqModel
	q := s.db.NewSelect().Model(&models)

	if opts.TenantID != "" {
		q = q.Where("tenant_id = ?", opts.TenantID)
	}

	q = q.Order("created_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sentinel/bun: list dlq: %w", err)
	}

	msgs := make([]*dlq.Message, 0, len(models))
	for i := range models {
		msg, convErr := fromDLQModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("sentinel/bun: list dlq convert: %w", convErr)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// UpdateDLQ replaces a stored dead-letter message.
func (s *Store) UpdateDLQ(ctx context.Context, msg *dlq.Message) error {
	m := toDLQModel(msg)
	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel/bun: update dlq: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// DeleteDLQ removes one dead-letter message.
func (s *Store) DeleteDLQ(ctx context.Context, msgID id.DLQID) error {
	res, err := s.db.NewDelete().
		TableExpr("sentinel_dlq").
		Where("id = ?", msgID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel/bun: delete dlq: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// PurgeExpiredDLQ removes messages whose retention elapsed at now.
func (s *Store) PurgeExpiredDLQ(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		TableExpr("sentinel_dlq").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel/bun: purge expired dlq: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

// CountDLQ counts retained messages, optionally for one tenant.
func (s *Store) CountDLQ(ctx context.Context, tenantID string) (int64, error) {
	q := s.db.NewSelect().Model((*dlqModel)(nil))
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel/bun: count dlq: %w", err)
	}
	return int64(n), nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// PushDLQ adds a dead-lettered execution to the store.
func (s *Store) PushDLQ(ctx context.Context, msg *dlq.Message) error {
	mID := msg.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, dlqKey(msg.ID), dlqToMap(msg))
	pipe.SAdd(ctx, dlqIDsKey(), mID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/redis: push dlq: %w", err)
	}
	return nil
}

// GetDLQ retrieves a dead-letter message by ID.
func (s *Store) GetDLQ(ctx context.Context, msgID id.DLQID) (*dlq.Message, error) {
	vals, err := s.client.HGetAll(ctx, dlqKey(msgID)).Result()
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, sentinel.ErrDLQNotFound
	}
	return mapToDLQ(vals)
}

// ListDLQ returns dead-letter messages matching the given options,
// newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: list dlq: %w", err)
	}
	sortNewestFirst(ids)

	msgs := make([]*dlq.Message, 0, len(ids))
	for _, mID := range ids {
		msgID, parseErr := id.ParseDLQID(mID)
		if parseErr != nil {
			continue
		}
		vals, getErr := s.client.HGetAll(ctx, dlqKey(msgID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		m, convErr := mapToDLQ(vals)
		if convErr != nil {
			continue
		}
		if opts.TenantID != "" && m.TenantID != opts.TenantID {
			continue
		}
		msgs = append(msgs, m)
	}

	if opts.Offset > 0 && opts.Offset < len(msgs) {
		msgs = msgs[opts.Offset:]
	} else if opts.Offset >= len(msgs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(msgs) {
		msgs = msgs[:opts.Limit]
	}
	return msgs, nil
}

// UpdateDLQ replaces a stored dead-letter message.
func (s *Store) UpdateDLQ(ctx context.Context, msg *dlq.Message) error {
	exists, err := s.client.Exists(ctx, dlqKey(msg.ID)).Result()
	if err != nil {
		return fmt.Errorf("sentinel/redis: update dlq exists: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrDLQNotFound
	}
	if err := s.client.HSet(ctx, dlqKey(msg.ID), dlqToMap(msg)).Err(); err != nil {
		return fmt.Errorf("sentinel/redis: update dlq: %w", err)
	}
	return nil
}

// DeleteDLQ removes a dead-letter message by ID.
func (s *Store) DeleteDLQ(ctx context.Context, msgID id.DLQID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, dlqKey(msgID))
	pipe.SRem(ctx, dlqIDsKey(), msgID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/redis: delete dlq: %w", err)
	}
	if del.Val() == 0 {
		return sentinel.ErrDLQNotFound
	}
	return nil
}

// PurgeExpiredDLQ removes messages whose retention elapsed at now.
func (s *Store) PurgeExpiredDLQ(ctx context.Context, now time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("sentinel/redis: purge dlq smembers: %w", err)
	}

	var purged int64
	for _, mID := range ids {
		msgID, parseErr := id.ParseDLQID(mID)
		if parseErr != nil {
			continue
		}
		expiresAtStr, getErr := s.client.HGet(ctx, dlqKey(msgID), "expires_at").Result()
		if getErr != nil {
			if errors.Is(getErr, goredis.Nil) {
				continue
			}
			return purged, fmt.Errorf("sentinel/redis: purge dlq get: %w", getErr)
		}

		expiresAt, _ := time.Parse(time.RFC3339Nano, expiresAtStr) //nolint:errcheck // best-effort parse from trusted Redis data
		if !expiresAt.IsZero() && !now.Before(expiresAt) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, dlqKey(msgID))
			pipe.SRem(ctx, dlqIDsKey(), mID)
			if _, execErr := pipe.Exec(ctx); execErr != nil {
				return purged, fmt.Errorf("sentinel/redis: purge dlq del: %w", execErr)
			}
			purged++
		}
	}
	return purged, nil
}

// CountDLQ returns the number of stored messages for a tenant, or for
// all tenants when tenantID is empty.
func (s *Store) CountDLQ(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		n, err := s.client.SCard(ctx, dlqIDsKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("sentinel/redis: count dlq: %w", err)
		}
		return n, nil
	}

	msgs, err := s.ListDLQ(ctx, dlq.ListOpts{TenantID: tenantID})
	if err != nil {
		return 0, err
	}
	return int64(len(msgs)), nil
}

// sortNewestFirst orders message IDs newest first. TypeIDs are
// K-sortable, so descending lexicographic order is reverse
// chronological — SMembers alone returns an arbitrary order.
func sortNewestFirst(ids []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
}

func dlqToMap(m *dlq.Message) map[string]interface{} {
	return map[string]interface{}{
		"id":            m.ID.String(),
		"tenant_id":     m.TenantID,
		"workflow_name": m.WorkflowName,
		"event_id":      m.EventID,
		"payload":       string(m.Payload),
		"error_message": m.ErrorMessage,
		"error_code":    m.ErrorCode,
		"retry_count":   strconv.Itoa(m.RetryCount),
		"expires_at":    m.ExpiresAt.Format(time.RFC3339Nano),
		"created_at":    m.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    m.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToDLQ(vals map[string]string) (*dlq.Message, error) {
	msgID, err := id.ParseDLQID(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: parse dlq id: %w", err)
	}
	retryCount, _ := strconv.Atoi(vals["retry_count"])               //nolint:errcheck // best-effort parse from trusted Redis data
	expiresAt, _ := time.Parse(time.RFC3339Nano, vals["expires_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, vals["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	m := &dlq.Message{
		ID:           msgID,
		TenantID:     vals["tenant_id"],
		WorkflowName: vals["workflow_name"],
		EventID:      vals["event_id"],
		Payload:      []byte(vals["payload"]),
		ErrorMessage: vals["error_message"],
		ErrorCode:    vals["error_code"],
		RetryCount:   retryCount,
		ExpiresAt:    expiresAt,
	}
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return m, nil
}

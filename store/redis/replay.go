package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/replay"
)

// MarkProcessed atomically claims the (tenant, event) pair. SET NX is
// the claim: exactly one caller observes created=true, every later
// caller observes the record already present.
func (s *Store) MarkProcessed(ctx context.Context, rec *replay.Record) (bool, error) {
	created, err := s.client.SetNX(ctx, replayKey(rec.TenantID, rec.EventID), replayToValue(rec), 0).Result()
	if err != nil {
		return false, fmt.Errorf("sentinel/redis: mark processed: %w", err)
	}
	if !created {
		return false, nil
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, replayIdxKey(rec.TenantID), rec.EventID)
	pipe.SAdd(ctx, replayTenantsKey(), rec.TenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("sentinel/redis: mark processed index: %w", err)
	}
	return true, nil
}

// IsProcessed reports whether the (tenant, event) pair has a record.
func (s *Store) IsProcessed(ctx context.Context, tenantID, eventID string) (bool, error) {
	exists, err := s.client.Exists(ctx, replayKey(tenantID, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("sentinel/redis: is processed: %w", err)
	}
	return exists > 0, nil
}

// GetReplay retrieves a replay record by tenant and event.
func (s *Store) GetReplay(ctx context.Context, tenantID, eventID string) (*replay.Record, error) {
	val, err := s.client.Get(ctx, replayKey(tenantID, eventID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, sentinel.ErrReplayNotFound
		}
		return nil, fmt.Errorf("sentinel/redis: get replay: %w", err)
	}
	return valueToReplay(tenantID, eventID, val), nil
}

// ListReplay returns replay records matching the given options.
func (s *Store) ListReplay(ctx context.Context, opts replay.ListOpts) ([]*replay.Record, error) {
	tenants := []string{opts.TenantID}
	if opts.TenantID == "" {
		all, err := s.client.SMembers(ctx, replayTenantsKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("sentinel/redis: list replay tenants: %w", err)
		}
		sort.Strings(all)
		tenants = all
	}

	var recs []*replay.Record
	for _, tenantID := range tenants {
		eventIDs, err := s.client.SMembers(ctx, replayIdxKey(tenantID)).Result()
		if err != nil {
			return nil, fmt.Errorf("sentinel/redis: list replay: %w", err)
		}
		sort.Strings(eventIDs)
		for _, eventID := range eventIDs {
			val, getErr := s.client.Get(ctx, replayKey(tenantID, eventID)).Result()
			if getErr != nil {
				continue
			}
			recs = append(recs, valueToReplay(tenantID, eventID, val))
		}
	}

	if opts.Offset > 0 && opts.Offset < len(recs) {
		recs = recs[opts.Offset:]
	} else if opts.Offset >= len(recs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(recs) {
		recs = recs[:opts.Limit]
	}
	return recs, nil
}

// DeleteReplay removes a single replay record.
func (s *Store) DeleteReplay(ctx context.Context, tenantID, eventID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, replayKey(tenantID, eventID))
	pipe.SRem(ctx, replayIdxKey(tenantID), eventID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/redis: delete replay: %w", err)
	}
	if del.Val() == 0 {
		return sentinel.ErrReplayNotFound
	}
	return nil
}

// PurgeReplay removes all replay records for a tenant.
func (s *Store) PurgeReplay(ctx context.Context, tenantID string) (int64, error) {
	eventIDs, err := s.client.SMembers(ctx, replayIdxKey(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("sentinel/redis: purge replay: %w", err)
	}

	var purged int64
	for _, eventID := range eventIDs {
		n, delErr := s.client.Del(ctx, replayKey(tenantID, eventID)).Result()
		if delErr != nil {
			return purged, fmt.Errorf("sentinel/redis: purge replay del: %w", delErr)
		}
		purged += n
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, replayIdxKey(tenantID))
	pipe.SRem(ctx, replayTenantsKey(), tenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return purged, fmt.Errorf("sentinel/redis: purge replay index: %w", err)
	}
	return purged, nil
}

// The record value packs workflow name and processed-at into a single
// string so the SET NX claim carries the whole record.
func replayToValue(rec *replay.Record) string {
	return rec.WorkflowName + "\x00" + rec.ProcessedAt.Format(time.RFC3339Nano)
}

func valueToReplay(tenantID, eventID, val string) *replay.Record {
	rec := &replay.Record{TenantID: tenantID, EventID: eventID}
	name, ts, ok := strings.Cut(val, "\x00")
	if ok {
		rec.WorkflowName = name
		rec.ProcessedAt, _ = time.Parse(time.RFC3339Nano, ts) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	rec.CreatedAt = rec.ProcessedAt
	rec.UpdatedAt = rec.ProcessedAt
	return rec
}

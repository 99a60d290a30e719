package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// GetBreaker retrieves the breaker state for a tenant.
func (s *Store) GetBreaker(ctx context.Context, tenantID string) (*breaker.TenantState, error) {
	vals, err := s.client.HGetAll(ctx, breakerKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: get breaker: %w", err)
	}
	if len(vals) == 0 {
		return nil, sentinel.ErrBreakerNotFound
	}
	return mapToBreaker(vals), nil
}

// SaveBreaker creates or replaces a tenant's breaker state.
func (s *Store) SaveBreaker(ctx context.Context, st *breaker.TenantState) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, breakerKey(st.TenantID), breakerToMap(st))
	pipe.SAdd(ctx, breakerIDsKey(), st.TenantID)
	if st.OpenedAt == nil {
		pipe.HDel(ctx, breakerKey(st.TenantID), "opened_at")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/redis: save breaker: %w", err)
	}
	return nil
}

func breakerToMap(st *breaker.TenantState) map[string]interface{} {
	m := map[string]interface{}{
		"tenant_id":     st.TenantID,
		"state":         string(st.State),
		"failure_count": strconv.Itoa(st.FailureCount),
		"window_start":  st.WindowStart.Format(time.RFC3339Nano),
		"created_at":    st.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    st.UpdatedAt.Format(time.RFC3339Nano),
	}
	if st.OpenedAt != nil {
		m["opened_at"] = st.OpenedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToBreaker(m map[string]string) *breaker.TenantState {
	failureCount, _ := strconv.Atoi(m["failure_count"])               //nolint:errcheck // best-effort parse from trusted Redis data
	windowStart, _ := time.Parse(time.RFC3339Nano, m["window_start"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])     //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])     //nolint:errcheck // best-effort parse from trusted Redis data

	st := &breaker.TenantState{
		TenantID:     m["tenant_id"],
		State:        breaker.State(m["state"]),
		FailureCount: failureCount,
		WindowStart:  windowStart,
	}
	st.CreatedAt = createdAt
	st.UpdatedAt = updatedAt
	if v := m["opened_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		st.OpenedAt = &t
	}
	return st
}

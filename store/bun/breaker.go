package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// GetBreaker retrieves a tenant's persisted breaker state.
func (s *Store) GetBreaker(ctx context.Context, tenantID string) (*breaker.TenantState, error) {
	m := new(breakerModel)
	err := s.db.NewSelect().Model(m).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrBreakerNotFound
		}
		return nil, fmt.Errorf("sentinel/bun: get breaker: %w", err)
	}
	return fromBreakerModel(m), nil
}

// SaveBreaker upserts a tenant's breaker state.
func (s *Store) SaveBreaker(ctx context.Context, st *breaker.TenantState) error {
	m := toBreakerModel(st)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("failure_count = EXCLUDED.failure_count").
		Set("window_start = EXCLUDED.window_start").
		Set("opened_at = EXCLUDED.opened_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel/bun: save breaker: %w", err)
	}
	return nil
}

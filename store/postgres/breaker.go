package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
)

// GetBreaker retrieves the breaker state for a tenant.
func (s *Store) GetBreaker(ctx context.Context, tenantID string) (*breaker.TenantState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, state, failure_count, window_start, opened_at, created_at, updated_at
		FROM sentinel_breakers
		WHERE tenant_id = $1`,
		tenantID,
	)
	st, err := scanBreaker(row)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrBreakerNotFound
		}
		return nil, fmt.Errorf("sentinel/postgres: get breaker: %w", err)
	}
	return st, nil
}

// SaveBreaker creates or replaces a tenant's breaker state.
func (s *Store) SaveBreaker(ctx context.Context, st *breaker.TenantState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sentinel_breakers (
			tenant_id, state, failure_count, window_start, opened_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			state = EXCLUDED.state,
			failure_count = EXCLUDED.failure_count,
			window_start = EXCLUDED.window_start,
			opened_at = EXCLUDED.opened_at,
			updated_at = EXCLUDED.updated_at`,
		st.TenantID, string(st.State), st.FailureCount, st.WindowStart,
		st.OpenedAt, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sentinel/postgres: save breaker: %w", err)
	}
	return nil
}

func scanBreaker(row pgx.Row) (*breaker.TenantState, error) {
	var (
		st       breaker.TenantState
		stateStr string
	)
	err := row.Scan(
		&st.TenantID, &stateStr, &st.FailureCount, &st.WindowStart,
		&st.OpenedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.State = breaker.State(stateStr)
	return &st, nil
}

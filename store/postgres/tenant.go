package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/tenant"
)

// GetTenantConfig retrieves the config for a tenant.
func (s *Store) GetTenantConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, concurrency_limit, rate_limit, rate_burst,
			breaker_threshold, breaker_window, breaker_recovery, max_retries,
			created_at, updated_at
		FROM sentinel_tenants
		WHERE tenant_id = $1`,
		tenantID,
	)
	cfg, err := scanTenant(row)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrTenantNotFound
		}
		return nil, fmt.Errorf("sentinel/postgres: get tenant config: %w", err)
	}
	return cfg, nil
}

// SaveTenantConfig creates or replaces a tenant's config.
func (s *Store) SaveTenantConfig(ctx context.Context, cfg *tenant.Config) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sentinel_tenants (
			tenant_id, concurrency_limit, rate_limit, rate_burst,
			breaker_threshold, breaker_window, breaker_recovery, max_retries,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO UPDATE SET
			concurrency_limit = EXCLUDED.concurrency_limit,
			rate_limit = EXCLUDED.rate_limit,
			rate_burst = EXCLUDED.rate_burst,
			breaker_threshold = EXCLUDED.breaker_threshold,
			breaker_window = EXCLUDED.breaker_window,
			breaker_recovery = EXCLUDED.breaker_recovery,
			max_retries = EXCLUDED.max_retries,
			updated_at = EXCLUDED.updated_at`,
		cfg.TenantID, cfg.ConcurrencyLimit, cfg.RateLimit, cfg.RateBurst,
		cfg.BreakerThreshold, int64(cfg.BreakerWindow), int64(cfg.BreakerRecovery),
		cfg.MaxRetries, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sentinel/postgres: save tenant config: %w", err)
	}
	return nil
}

// ListTenantConfigs returns all explicitly configured tenants.
func (s *Store) ListTenantConfigs(ctx context.Context) ([]*tenant.Config, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, concurrency_limit, rate_limit, rate_burst,
			breaker_threshold, breaker_window, breaker_recovery, max_retries,
			created_at, updated_at
		FROM sentinel_tenants
		ORDER BY tenant_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sentinel/postgres: list tenant configs: %w", err)
	}
	defer rows.Close()

	var cfgs []*tenant.Config
	for rows.Next() {
		c, scanErr := scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("sentinel/postgres: scan tenant row: %w", scanErr)
		}
		cfgs = append(cfgs, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sentinel/postgres: iterate tenant rows: %w", err)
	}
	return cfgs, nil
}

func scanTenant(row pgx.Row) (*tenant.Config, error) {
	var (
		cfg      tenant.Config
		window   int64
		recovery int64
	)
	err := row.Scan(
		&cfg.TenantID, &cfg.ConcurrencyLimit, &cfg.RateLimit, &cfg.RateBurst,
		&cfg.BreakerThreshold, &window, &recovery, &cfg.MaxRetries,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.BreakerWindow = time.Duration(window)
	cfg.BreakerRecovery = time.Duration(recovery)
	return &cfg, nil
}

package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/tenant"
)

// GetTenantConfig retrieves a tenant's stored configuration.
func (s *Store) GetTenantConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	m := new(tenantModel)
	err := s.db.NewSelect().Model(m).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, sentinel.ErrTenantNotFound
		}
		return nil, fmt.Errorf("sentinel/bun: get tenant config: %w", err)
	}
	return fromTenantModel(m), nil
}

// SaveTenantConfig upserts a tenant's configuration.
func (s *Store) SaveTenantConfig(ctx context.Context, cfg *tenant.Config) error {
	m := toTenantModel(cfg)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("concurrency_limit = EXCLUDED.concurrency_limit").
		Set("rate_limit = EXCLUDED.rate_limit").
		Set("rate_burst = EXCLUDED.rate_burst").
		Set("breaker_threshold = EXCLUDED.breaker_threshold").
		Set("breaker_window = EXCLUDED.breaker_window").
		Set("breaker_recovery = EXCLUDED.breaker_recovery").
		Set("max_retries = EXCLUDED.max_retries").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel/bun: save tenant config: %w", err)
	}
	return nil
}

// ListTenantConfigs returns every stored tenant configuration.
func (s *Store) ListTenantConfigs(ctx context.Context) ([]*tenant.Config, error) {
	var models []tenantModel
	err := s.db.NewSelect().Model(&models).
		Order("tenant_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("sentinel/bun: list tenant configs: %w", err)
	}

	cfgs := make([]*tenant.Config, 0, len(models))
	for i := range models {
		cfgs = append(cfgs, fromTenantModel(&models[i]))
	}
	return cfgs, nil
}

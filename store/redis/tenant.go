package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/tenant"
)

// GetTenantConfig retrieves the config for a tenant.
func (s *Store) GetTenantConfig(ctx context.Context, tenantID string) (*tenant.Config, error) {
	vals, err := s.client.HGetAll(ctx, tenantKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: get tenant config: %w", err)
	}
	if len(vals) == 0 {
		return nil, sentinel.ErrTenantNotFound
	}
	return mapToTenant(vals), nil
}

// SaveTenantConfig creates or replaces a tenant's config.
func (s *Store) SaveTenantConfig(ctx context.Context, cfg *tenant.Config) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, tenantKey(cfg.TenantID), tenantToMap(cfg))
	pipe.SAdd(ctx, tenantIDsKey(), cfg.TenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sentinel/redis: save tenant config: %w", err)
	}
	return nil
}

// ListTenantConfigs returns all explicitly configured tenants.
func (s *Store) ListTenantConfigs(ctx context.Context) ([]*tenant.Config, error) {
	ids, err := s.client.SMembers(ctx, tenantIDsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("sentinel/redis: list tenant configs: %w", err)
	}
	sort.Strings(ids)

	cfgs := make([]*tenant.Config, 0, len(ids))
	for _, tenantID := range ids {
		vals, getErr := s.client.HGetAll(ctx, tenantKey(tenantID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		cfgs = append(cfgs, mapToTenant(vals))
	}
	return cfgs, nil
}

func tenantToMap(cfg *tenant.Config) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":         cfg.TenantID,
		"concurrency_limit": strconv.Itoa(cfg.ConcurrencyLimit),
		"rate_limit":        strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64),
		"rate_burst":        strconv.Itoa(cfg.RateBurst),
		"breaker_threshold": strconv.Itoa(cfg.BreakerThreshold),
		"breaker_window":    strconv.FormatInt(int64(cfg.BreakerWindow), 10),
		"breaker_recovery":  strconv.FormatInt(int64(cfg.BreakerRecovery), 10),
		"max_retries":       strconv.Itoa(cfg.MaxRetries),
		"created_at":        cfg.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":        cfg.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToTenant(m map[string]string) *tenant.Config {
	concurrency, _ := strconv.Atoi(m["concurrency_limit"])         //nolint:errcheck // best-effort parse from trusted Redis data
	rateLimit, _ := strconv.ParseFloat(m["rate_limit"], 64)        //nolint:errcheck // best-effort parse from trusted Redis data
	rateBurst, _ := strconv.Atoi(m["rate_burst"])                  //nolint:errcheck // best-effort parse from trusted Redis data
	threshold, _ := strconv.Atoi(m["breaker_threshold"])           //nolint:errcheck // best-effort parse from trusted Redis data
	window, _ := strconv.ParseInt(m["breaker_window"], 10, 64)     //nolint:errcheck // best-effort parse from trusted Redis data
	recovery, _ := strconv.ParseInt(m["breaker_recovery"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])                //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])  //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])  //nolint:errcheck // best-effort parse from trusted Redis data

	cfg := &tenant.Config{
		TenantID:         m["tenant_id"],
		ConcurrencyLimit: concurrency,
		RateLimit:        rateLimit,
		RateBurst:        rateBurst,
		BreakerThreshold: threshold,
		BreakerWindow:    time.Duration(window),
		BreakerRecovery:  time.Duration(recovery),
		MaxRetries:       maxRetries,
	}
	cfg.CreatedAt = createdAt
	cfg.UpdatedAt = updatedAt
	return cfg
}

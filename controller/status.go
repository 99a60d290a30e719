package controller

import (
	"context"
	"sort"

	"github.com/xraph/sentinel/breaker"
)

// TenantStatus is the reliability view of one tenant.
type TenantStatus struct {
	TenantID         string               `json:"tenant_id"`
	Breaker          *breaker.TenantState `json:"breaker,omitempty"`
	InFlight         int                  `json:"in_flight"`
	ConcurrencyLimit int                  `json:"concurrency_limit"`
	DLQCount         int64                `json:"dlq_count"`
}

// Status is the reliability view across tenants.
type Status struct {
	GlobalInFlight int            `json:"global_in_flight"`
	GlobalLimit    int            `json:"global_limit"`
	Tenants        []TenantStatus `json:"tenants"`
}

// Status reports breaker state, slot usage, and dead-letter volume for
// every tenant this process has seen, sorted by tenant ID. When
// tenantID is non-empty only that tenant is reported.
func (c *Controller) Status(ctx context.Context, tenantID string) (*Status, error) {
	seen := make(map[string]struct{})
	if tenantID != "" {
		seen[tenantID] = struct{}{}
	} else {
		for _, id := range c.breakers.TenantIDs() {
			seen[id] = struct{}{}
		}
		for _, snap := range c.limiter.Snapshots(nil) {
			seen[snap.TenantID] = struct{}{}
		}
	}

	st := &Status{
		GlobalInFlight: c.limiter.GlobalInFlight(),
		GlobalLimit:    c.limiter.GlobalLimit(),
		Tenants:        make([]TenantStatus, 0, len(seen)),
	}

	for id := range seen {
		tcfg := c.tenantConfig(ctx, id)

		ts := TenantStatus{
			TenantID:         id,
			InFlight:         c.limiter.InFlight(id),
			ConcurrencyLimit: tcfg.ConcurrencyLimit,
		}

		brk, err := c.breakers.Snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		ts.Breaker = brk

		n, err := c.dlqSvc.Count(ctx, id)
		if err != nil {
			return nil, err
		}
		ts.DLQCount = n

		st.Tenants = append(st.Tenants, ts)
	}

	sort.Slice(st.Tenants, func(i, j int) bool {
		return st.Tenants[i].TenantID < st.Tenants[j].TenantID
	})
	return st, nil
}

package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/tenant"
)

func (a *API) listTenants(ctx forge.Context) error {
	cfgs, err := a.ctrl.Store().ListTenantConfigs(ctx.Context())
	if err != nil {
		return fmt.Errorf("list tenant configs: %w", err)
	}

	return ctx.JSON(http.StatusOK, cfgs)
}

func (a *API) getTenant(ctx forge.Context) error {
	tenantID := ctx.Param("tenantId")
	if tenantID == "" {
		return forge.BadRequest("tenant ID is required")
	}

	cfg, err := a.ctrl.Store().GetTenantConfig(ctx.Context(), tenantID)
	if err != nil {
		return mapStoreError(err)
	}

	return ctx.JSON(http.StatusOK, cfg)
}

func (a *API) putTenant(ctx forge.Context, req *tenant.Config) (*tenant.Config, error) {
	tenantID := ctx.Param("tenantId")
	if tenantID == "" {
		return nil, forge.BadRequest("tenant ID is required")
	}
	req.TenantID = tenantID
	if req.CreatedAt.IsZero() {
		req.Entity = sentinel.NewEntity()
	}

	norm := req.Normalize()
	if err := a.ctrl.Store().SaveTenantConfig(ctx.Context(), &norm); err != nil {
		return nil, fmt.Errorf("save tenant config: %w", err)
	}

	return &norm, ctx.JSON(http.StatusOK, &norm)
}

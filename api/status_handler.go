package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel/controller"
)

func (a *API) getStatus(ctx forge.Context, req *StatusRequest) (*controller.Status, error) {
	st, err := a.ctrl.Status(ctx.Context(), req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("reliability status: %w", err)
	}
	return st, ctx.JSON(http.StatusOK, st)
}

func (a *API) resetBreaker(ctx forge.Context, req *ResetBreakerRequest) (*struct{}, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual reset via api"
	}
	if err := a.ctrl.ResetBreaker(ctx.Context(), req.TenantID, reason); err != nil {
		return nil, mapStoreError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

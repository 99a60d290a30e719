package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/replay"
)

func (a *API) listReplay(ctx forge.Context, req *ListReplayRequest) ([]*replay.Record, error) {
	recs, err := a.replayRecords(ctx.Context(), req)
	if err != nil {
		return nil, err
	}

	return recs, ctx.JSON(http.StatusOK, recs)
}

// replayRecords resolves a ledger listing, or a single-record
// processed-status check when EventID is set (not found maps to 404).
func (a *API) replayRecords(ctx context.Context, req *ListReplayRequest) ([]*replay.Record, error) {
	if req.EventID != "" {
		if req.TenantID == "" {
			return nil, forge.BadRequest("tenant_id is required with event_id")
		}
		rec, err := a.ctrl.Store().GetReplay(ctx, req.TenantID, req.EventID)
		if err != nil {
			return nil, mapStoreError(err)
		}
		return []*replay.Record{rec}, nil
	}

	recs, err := a.ctrl.Store().ListReplay(ctx, replay.ListOpts{
		TenantID: req.TenantID,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list replay records: %w", err)
	}
	return recs, nil
}

func (a *API) createReplay(ctx forge.Context, req *CreateReplayRequest) (*replay.Record, error) {
	if req.TenantID == "" || req.EventID == "" {
		return nil, forge.BadRequest("tenant_id and event_id are required")
	}

	rec := &replay.Record{
		Entity:       sentinel.NewEntity(),
		TenantID:     req.TenantID,
		EventID:      req.EventID,
		WorkflowName: req.WorkflowName,
		ProcessedAt:  time.Now().UTC(),
	}
	created, err := a.ctrl.Store().MarkProcessed(ctx.Context(), rec)
	if err != nil {
		return nil, fmt.Errorf("create replay record: %w", err)
	}
	if !created {
		return nil, forge.BadRequest(sentinel.ErrReplayConflict.Error())
	}

	return rec, ctx.JSON(http.StatusCreated, rec)
}

func (a *API) deleteReplay(ctx forge.Context, req *DeleteReplayRequest) (*DeleteReplayResponse, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenant_id is required")
	}

	resp := &DeleteReplayResponse{}
	if req.EventID != "" {
		if err := a.ctrl.Store().DeleteReplay(ctx.Context(), req.TenantID, req.EventID); err != nil {
			return nil, mapStoreError(err)
		}
		resp.Deleted = 1
		return resp, ctx.JSON(http.StatusOK, resp)
	}

	n, err := a.ctrl.Store().PurgeReplay(ctx.Context(), req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("purge replay records: %w", err)
	}
	resp.Deleted = n
	return resp, ctx.JSON(http.StatusOK, resp)
}

package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

func (a *API) listDLQ(ctx forge.Context, req *ListDLQRequest) ([]*dlq.Message, error) {
	msgs, err := a.ctrl.DLQ().List(ctx.Context(), dlq.ListOpts{
		TenantID: req.TenantID,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}

	return msgs, ctx.JSON(http.StatusOK, msgs)
}

func (a *API) getDLQ(ctx forge.Context) error {
	msgID, err := id.ParseDLQID(ctx.Param("messageId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid DLQ message ID: %v", err))
	}

	msg, err := a.ctrl.DLQ().Get(ctx.Context(), msgID)
	if err != nil {
		return mapStoreError(err)
	}

	return ctx.JSON(http.StatusOK, msg)
}

func (a *API) retryDLQ(ctx forge.Context) error {
	msgID, err := id.ParseDLQID(ctx.Param("messageId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid DLQ message ID: %v", err))
	}

	res, err := a.ctrl.DLQ().Retry(ctx.Context(), msgID)
	if err != nil {
		return mapStoreError(err)
	}

	return ctx.JSON(http.StatusOK, RetryDLQResponse{Result: res})
}

func (a *API) deleteDLQ(ctx forge.Context) error {
	msgID, err := id.ParseDLQID(ctx.Param("messageId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid DLQ message ID: %v", err))
	}

	if err := a.ctrl.DLQ().Delete(ctx.Context(), msgID); err != nil {
		return mapStoreError(err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
)

// maxPageSize bounds list responses.
const maxPageSize = 100

// StatusRequest filters the status report.
type StatusRequest struct {
	TenantID string `query:"tenant_id" json:"tenant_id,omitempty"`
}

// ResetBreakerRequest is the manual circuit reset payload.
type ResetBreakerRequest struct {
	TenantID string `json:"tenant_id"`
	Reason   string `json:"reason,omitempty"`
}

// ListDLQRequest filters dead-letter listings.
type ListDLQRequest struct {
	TenantID string `query:"tenant_id" json:"tenant_id,omitempty"`
	Limit    int    `query:"limit" json:"limit,omitempty"`
	Offset   int    `query:"offset" json:"offset,omitempty"`
}

// RetryDLQResponse reports the outcome of a manual dead-letter retry.
type RetryDLQResponse struct {
	Result *sentinel.Result `json:"result"`
}

// ListReplayRequest filters replay record listings. Setting EventID
// turns the listing into a processed-status check for one
// (tenant, event) pair.
type ListReplayRequest struct {
	TenantID string `query:"tenant_id" json:"tenant_id,omitempty"`
	EventID  string `query:"event_id" json:"event_id,omitempty"`
	Limit    int    `query:"limit" json:"limit,omitempty"`
	Offset   int    `query:"offset" json:"offset,omitempty"`
}

// CreateReplayRequest manually marks an event as processed.
type CreateReplayRequest struct {
	TenantID     string `json:"tenant_id"`
	EventID      string `json:"event_id"`
	WorkflowName string `json:"workflow_name,omitempty"`
}

// DeleteReplayRequest targets one record, or a whole tenant when
// EventID is empty.
type DeleteReplayRequest struct {
	TenantID string `query:"tenant_id" json:"tenant_id"`
	EventID  string `query:"event_id" json:"event_id,omitempty"`
}

// DeleteReplayResponse reports how many records were removed.
type DeleteReplayResponse struct {
	Deleted int64 `json:"deleted"`
}

// defaultLimit clamps a requested page size into (0, maxPageSize].
func defaultLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrDLQNotFound) ||
		errors.Is(err, sentinel.ErrBreakerNotFound) ||
		errors.Is(err, sentinel.ErrTenantNotFound) ||
		errors.Is(err, sentinel.ErrReplayNotFound)
}

package dlq

import (
	"context"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
)

// Message is one dead-lettered dispatch.
type Message struct {
	sentinel.Entity

	ID           id.DLQID  `json:"id"`
	TenantID     string    `json:"tenant_id"`
	WorkflowName string    `json:"workflow_name"`
	EventID      string    `json:"event_id,omitempty"`
	Payload      []byte    `json:"payload,omitempty"`
	ErrorMessage string    `json:"error_message"`
	ErrorCode    string    `json:"error_code"`
	RetryCount   int       `json:"retry_count"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the message's retention has elapsed at now.
func (m *Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}

// ListOpts filters dead-letter listings.
type ListOpts struct {
	TenantID string
	Limit    int
	Offset   int
}

// Store persists dead-letter messages.
//
// Get and Update return sentinel.ErrDLQNotFound for unknown IDs.
// PurgeExpired deletes every message whose ExpiresAt is at or before
// now and reports how many were removed.
type Store interface {
	PushDLQ(ctx context.Context, msg *Message) error
	GetDLQ(ctx context.Context, msgID id.DLQID) (*Message, error)
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Message, error)
	UpdateDLQ(ctx context.Context, msg *Message) error
	DeleteDLQ(ctx context.Context, msgID id.DLQID) error
	PurgeExpiredDLQ(ctx context.Context, now time.Time) (int64, error)
	CountDLQ(ctx context.Context, tenantID string) (int64, error)
}

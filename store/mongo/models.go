package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/tenant"
)

type breakerModel struct {
	TenantID     string     `bson:"_id"`
	State        string     `bson:"state"`
	FailureCount int        `bson:"failure_count"`
	WindowStart  time.Time  `bson:"window_start"`
	OpenedAt     *time.Time `bson:"opened_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toBreakerModel(st *breaker.TenantState) *breakerModel {
	return &breakerModel{
		TenantID:     st.TenantID,
		State:        string(st.State),
		FailureCount: st.FailureCount,
		WindowStart:  st.WindowStart,
		OpenedAt:     st.OpenedAt,
		CreatedAt:    st.CreatedAt,
		UpdatedAt:    st.UpdatedAt,
	}
}

func fromBreakerModel(m *breakerModel) *breaker.TenantState {
	st := &breaker.TenantState{
		TenantID:     m.TenantID,
		State:        breaker.State(m.State),
		FailureCount: m.FailureCount,
		WindowStart:  m.WindowStart,
		OpenedAt:     m.OpenedAt,
	}
	st.CreatedAt = m.CreatedAt
	st.UpdatedAt = m.UpdatedAt
	return st
}

type dlqMessageModel struct {
	ID           string    `bson:"_id"`
	TenantID     string    `bson:"tenant_id"`
	WorkflowName string    `bson:"workflow_name"`
	EventID      string    `bson:"event_id"`
	Payload      []byte    `bson:"payload"`
	ErrorMessage string    `bson:"error_message"`
	ErrorCode    string    `bson:"error_code"`
	RetryCount   int       `bson:"retry_count"`
	ExpiresAt    time.Time `bson:"expires_at"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toDLQModel(msg *dlq.Message) *dlqMessageModel {
	return &dlqMessageModel{
		ID:           msg.ID.String(),
		TenantID:     msg.TenantID,
		WorkflowName: msg.WorkflowName,
		EventID:      msg.EventID,
		Payload:      msg.Payload,
		ErrorMessage: msg.ErrorMessage,
		ErrorCode:    msg.ErrorCode,
		RetryCount:   msg.RetryCount,
		ExpiresAt:    msg.ExpiresAt,
		CreatedAt:    msg.CreatedAt,
		UpdatedAt:    msg.UpdatedAt,
	}
}

func fromDLQModel(m *dlqMessageModel) (*dlq.Message, error) {
	msgID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("sentinel/mongo: parse dlq id %q: %w", m.ID, err)
	}
	msg := &dlq.Message{
		ID:           msgID,
		TenantID:     m.TenantID,
		WorkflowName: m.WorkflowName,
		EventID:      m.EventID,
		Payload:      m.Payload,
		ErrorMessage: m.ErrorMessage,
		ErrorCode:    m.ErrorCode,
		RetryCount:   m.RetryCount,
		ExpiresAt:    m.ExpiresAt,
	}
	msg.CreatedAt = m.CreatedAt
	msg.UpdatedAt = m.UpdatedAt
	return msg, nil
}

type replayModel struct {
	TenantID     string    `bson:"tenant_id"`
	EventID      string    `bson:"event_id"`
	WorkflowName string    `bson:"workflow_name"`
	ProcessedAt  time.Time `bson:"processed_at"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toReplayModel(rec *replay.Record) *replayModel {
	return &replayModel{
		TenantID:     rec.TenantID,
		EventID:      rec.EventID,
		WorkflowName: rec.WorkflowName,
		ProcessedAt:  rec.ProcessedAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromReplayModel(m *replayModel) *replay.Record {
	rec := &replay.Record{
		TenantID:     m.TenantID,
		EventID:      m.EventID,
		WorkflowName: m.WorkflowName,
		ProcessedAt:  m.ProcessedAt,
	}
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return rec
}

type tenantModel struct {
	TenantID         string    `bson:"_id"`
	ConcurrencyLimit int       `bson:"concurrency_limit"`
	RateLimit        float64   `bson:"rate_limit"`
	RateBurst        int       `bson:"rate_burst"`
	BreakerThreshold int       `bson:"breaker_threshold"`
	BreakerWindow    int64     `bson:"breaker_window"`
	BreakerRecovery  int64     `bson:"breaker_recovery"`
	MaxRetries       int       `bson:"max_retries"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toTenantModel(cfg *tenant.Config) *tenantModel {
	return &tenantModel{
		TenantID:         cfg.TenantID,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerWindow:    int64(cfg.BreakerWindow),
		BreakerRecovery:  int64(cfg.BreakerRecovery),
		MaxRetries:       cfg.MaxRetries,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

func fromTenantModel(m *tenantModel) *tenant.Config {
	cfg := &tenant.Config{
		TenantID:         m.TenantID,
		ConcurrencyLimit: m.ConcurrencyLimit,
		RateLimit:        m.RateLimit,
		RateBurst:        m.RateBurst,
		BreakerThreshold: m.BreakerThreshold,
		BreakerWindow:    time.Duration(m.BreakerWindow),
		BreakerRecovery:  time.Duration(m.BreakerRecovery),
		MaxRetries:       m.MaxRetries,
	}
	cfg.CreatedAt = m.CreatedAt
	cfg.UpdatedAt = m.UpdatedAt
	return cfg
}

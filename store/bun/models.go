package bunstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/tenant"
)

// ── Breaker model ─────────────────────────────────────────────────

type breakerModel struct {
	bun.BaseModel `bun:"table:sentinel_breakers"`

	TenantID     string     `bun:"tenant_id,pk"`
	State        string     `bun:"state,notnull,default:'closed'"`
	FailureCount int        `bun:"failure_count,notnull,default:0"`
	WindowStart  time.Time  `bun:"window_start,notnull,default:current_timestamp"`
	OpenedAt     *time.Time `bun:"opened_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
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
	return &breaker.TenantState{
		Entity: sentinel.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:     m.TenantID,
		State:        breaker.State(m.State),
		FailureCount: m.FailureCount,
		WindowStart:  m.WindowStart,
		OpenedAt:     m.OpenedAt,
	}
}

// ── DLQ model ─────────────────────────────────────────────────────

type dlqModel struct {
	bun.BaseModel `bun:"table:sentinel_dlq"`

	ID           string    `bun:"id,pk"`
	TenantID     string    `bun:"tenant_id,notnull"`
	WorkflowName string    `bun:"workflow_name,notnull"`
	EventID      string    `bun:"event_id"`
	Payload      []byte    `bun:"payload,type:bytea"`
	ErrorMessage string    `bun:"error_message"`
	ErrorCode    string    `bun:"error_code"`
	RetryCount   int       `bun:"retry_count,notnull,default:0"`
	ExpiresAt    time.Time `bun:"expires_at,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toDLQModel(msg *dlq.Message) *dlqModel {
	return &dlqModel{
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

func fromDLQModel(m *dlqModel) (*dlq.Message, error) {
	parsedID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("sentinel/bun: parse dlq id %q: %w", m.ID, err)
	}

	return &dlq.Message{
		Entity: sentinel.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           parsedID,
		TenantID:     m.TenantID,
		WorkflowName: m.WorkflowName,
		EventID:      m.EventID,
		Payload:      m.Payload,
		ErrorMessage: m.ErrorMessage,
		ErrorCode:    m.ErrorCode,
		RetryCount:   m.RetryCount,
		ExpiresAt:    m.ExpiresAt,
	}, nil
}

// ── Replay model ──────────────────────────────────────────────────

type replayModel struct {
	bun.BaseModel `bun:"table:sentinel_replays"`

	TenantID     string    `bun:"tenant_id,pk"`
	EventID      string    `bun:"event_id,pk"`
	WorkflowName string    `bun:"workflow_name"`
	ProcessedAt  time.Time `bun:"processed_at,notnull,default:current_timestamp"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
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
	return &replay.Record{
		Entity: sentinel.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:     m.TenantID,
		EventID:      m.EventID,
		WorkflowName: m.WorkflowName,
		ProcessedAt:  m.ProcessedAt,
	}
}

// ── Tenant model ──────────────────────────────────────────────────

type tenantModel struct {
	bun.BaseModel `bun:"table:sentinel_tenants"`

	TenantID         string    `bun:"tenant_id,pk"`
	ConcurrencyLimit int       `bun:"concurrency_limit,notnull,default:5"`
	RateLimit        float64   `bun:"rate_limit,notnull,default:0"`
	RateBurst        int       `bun:"rate_burst,notnull,default:0"`
	BreakerThreshold int       `bun:"breaker_threshold,notnull,default:10"`
	BreakerWindow    int64     `bun:"breaker_window,notnull,default:0"`
	BreakerRecovery  int64     `bun:"breaker_recovery,notnull,default:0"`
	MaxRetries       int       `bun:"max_retries,notnull,default:3"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toTenantModel(cfg *tenant.Config) *tenantModel {
	return &tenantModel{
		TenantID:         cfg.TenantID,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerWindow:    cfg.BreakerWindow.Nanoseconds(),
		BreakerRecovery:  cfg.BreakerRecovery.Nanoseconds(),
		MaxRetries:       cfg.MaxRetries,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

func fromTenantModel(m *tenantModel) *tenant.Config {
	return &tenant.Config{
		Entity: sentinel.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:         m.TenantID,
		ConcurrencyLimit: m.ConcurrencyLimit,
		RateLimit:        m.RateLimit,
		RateBurst:        m.RateBurst,
		BreakerThreshold: m.BreakerThreshold,
		BreakerWindow:    time.Duration(m.BreakerWindow),
		BreakerRecovery:  time.Duration(m.BreakerRecovery),
		MaxRetries:       m.MaxRetries,
	}
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

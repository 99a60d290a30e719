package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
)

// Redispatcher runs a dead-lettered message back through the dispatch
// pipeline. The returned result reflects the full pipeline outcome; the
// redispatch never dead-letters again on its own, the service decides
// what happens to the stored message.
type Redispatcher interface {
	Redispatch(ctx context.Context, msg *Message) (*sentinel.Result, error)
}

// Emitter receives dead-letter lifecycle notifications.
type Emitter interface {
	EmitDLQSwept(ctx context.Context, removed int64)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRedispatcher wires the dispatch pipeline used by Retry.
func WithRedispatcher(r Redispatcher) ServiceOption {
	return func(s *Service) { s.redispatcher = r }
}

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) ServiceOption {
	return func(s *Service) { s.emitter = e }
}

// Service owns the dead-letter lifecycle: capture, listing, manual
// retry, manual deletion, and TTL-based expiry.
type Service struct {
	store        Store
	ttl          time.Duration
	logger       *slog.Logger
	redispatcher Redispatcher
	emitter      Emitter
}

// NewService creates a dead-letter service. ttl bounds how long
// messages are retained before the sweeper removes them.
func NewService(store Store, ttl time.Duration, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push captures a failed dispatch. The message receives an ID and an
// expiry stamp; the caller fills in tenant, workflow, payload, and
// failure context.
func (s *Service) Push(ctx context.Context, msg *Message) error {
	if msg.ID.IsNil() {
		msg.ID = id.NewDLQID()
	}
	msg.Entity = sentinel.NewEntity()
	if msg.ExpiresAt.IsZero() && s.ttl > 0 {
		msg.ExpiresAt = time.Now().UTC().Add(s.ttl)
	}

	if err := s.store.PushDLQ(ctx, msg); err != nil {
		return fmt.Errorf("push dead-letter message: %w", err)
	}

	s.logger.Warn("dispatch dead-lettered",
		slog.String("dlq_id", msg.ID.String()),
		slog.String("tenant_id", msg.TenantID),
		slog.String("workflow", msg.WorkflowName),
		slog.String("error_code", msg.ErrorCode),
		slog.Int("retry_count", msg.RetryCount),
	)
	return nil
}

// Get returns one message by ID.
func (s *Service) Get(ctx context.Context, msgID id.DLQID) (*Message, error) {
	return s.store.GetDLQ(ctx, msgID)
}

// List returns messages matching opts, newest first.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Message, error) {
	return s.store.ListDLQ(ctx, opts)
}

// Count returns the number of retained messages for the tenant, or for
// all tenants when tenantID is empty.
func (s *Service) Count(ctx context.Context, tenantID string) (int64, error) {
	return s.store.CountDLQ(ctx, tenantID)
}

// Delete removes one message by ID.
func (s *Service) Delete(ctx context.Context, msgID id.DLQID) error {
	if err := s.store.DeleteDLQ(ctx, msgID); err != nil {
		return err
	}
	s.logger.Info("dead-letter message deleted", slog.String("dlq_id", msgID.String()))
	return nil
}

// Retry re-dispatches one message through the full pipeline with its
// retry count incremented. A successful redispatch removes the stored
// message; a failed one updates it in place with the new failure.
func (s *Service) Retry(ctx context.Context, msgID id.DLQID) (*sentinel.Result, error) {
	if s.redispatcher == nil {
		return nil, sentinel.ErrNoInvoker
	}

	msg, err := s.store.GetDLQ(ctx, msgID)
	if err != nil {
		return nil, err
	}

	msg.RetryCount++

	res, err := s.redispatcher.Redispatch(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("redispatch dead-letter message: %w", err)
	}

	if res.Success || res.Skipped {
		if err := s.store.DeleteDLQ(ctx, msgID); err != nil {
			s.logger.Error("dead-letter delete after retry failed",
				slog.String("dlq_id", msgID.String()),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("dead-letter message retried",
			slog.String("dlq_id", msgID.String()),
			slog.String("tenant_id", msg.TenantID),
			slog.Bool("skipped", res.Skipped),
		)
		return res, nil
	}

	msg.ErrorCode = string(res.ErrorCode)
	if res.Err != nil {
		msg.ErrorMessage = res.Err.Error()
	}
	msg.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDLQ(ctx, msg); err != nil {
		s.logger.Error("dead-letter update after failed retry failed",
			slog.String("dlq_id", msgID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Warn("dead-letter retry failed",
		slog.String("dlq_id", msgID.String()),
		slog.String("tenant_id", msg.TenantID),
		slog.String("error_code", msg.ErrorCode),
		slog.Int("retry_count", msg.RetryCount),
	)
	return res, nil
}

// SweepExpired removes every message past its expiry.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.PurgeExpiredDLQ(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired dead-letter messages: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired dead-letter messages swept", slog.Int64("removed", removed))
	}
	if s.emitter != nil {
		s.emitter.EmitDLQSwept(ctx, removed)
	}
	return removed, nil
}

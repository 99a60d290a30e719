package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// Request is one workflow trigger entering the reliability pipeline.
type Request struct {
	TenantID     string `json:"tenant_id"`
	WorkflowName string `json:"workflow_name"`
	Payload      []byte `json:"payload,omitempty"`

	// EventID enables replay protection. Empty disables it for this
	// dispatch.
	EventID string `json:"event_id,omitempty"`
}

// runOpts distinguishes first-time dispatches from dead-letter
// redispatches.
type runOpts struct {
	// deadLetter captures the execution in the dead-letter store when
	// retries are exhausted. Redispatches disable it: the stored
	// message is updated in place by the dead-letter service instead.
	deadLetter bool
	// retryCount seeds the dead-letter retry counter.
	retryCount int
}

// Dispatch runs one trigger through the pipeline: replay check, circuit
// breaker, concurrency limiter, invocation, retry with backoff, and
// dead-letter capture when retries are exhausted.
//
// Dispatch never panics; every outcome is a structured Result.
func (c *Controller) Dispatch(ctx context.Context, req Request) *sentinel.Result {
	return c.run(ctx, req, runOpts{deadLetter: true})
}

// Redispatch implements dlq.Redispatcher: it re-runs a dead-lettered
// message through the full pipeline without creating a second
// dead-letter entry on failure.
func (c *Controller) Redispatch(ctx context.Context, msg *dlq.Message) (*sentinel.Result, error) {
	req := Request{
		TenantID:     msg.TenantID,
		WorkflowName: msg.WorkflowName,
		Payload:      msg.Payload,
		EventID:      msg.EventID,
	}
	return c.run(ctx, req, runOpts{retryCount: msg.RetryCount}), nil
}

func (c *Controller) run(ctx context.Context, req Request, opts runOpts) (res *sentinel.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("dispatch panic",
				slog.String("tenant_id", req.TenantID),
				slog.String("workflow", req.WorkflowName),
				slog.String("panic", fmt.Sprint(rec)),
			)
			res = &sentinel.Result{
				ErrorCode: sentinel.CodeInternal,
				Err:       fmt.Errorf("dispatch panic: %v", rec),
			}
		}
	}()

	if req.TenantID == "" || req.WorkflowName == "" {
		return &sentinel.Result{
			ErrorCode: sentinel.CodeInternal,
			Err:       errors.New("sentinel: dispatch requires tenant_id and workflow_name"),
		}
	}

	tcfg := c.tenantConfig(ctx, req.TenantID)
	settings := breaker.Settings{
		Threshold: tcfg.BreakerThreshold,
		Window:    tcfg.BreakerWindow,
		Recovery:  tcfg.BreakerRecovery,
	}

	exec := &sentinel.Execution{
		Entity:       sentinel.NewEntity(),
		ID:           id.NewExecutionID(),
		TenantID:     req.TenantID,
		WorkflowName: req.WorkflowName,
		Payload:      req.Payload,
		EventID:      req.EventID,
		MaxRetries:   tcfg.MaxRetries,
		Timeout:      c.cfg.ExecutionTimeout,
	}

	// A duplicate of an already-processed event is a successful no-op.
	dup, err := c.guard.IsDuplicate(ctx, req.TenantID, req.EventID)
	if err != nil {
		return &sentinel.Result{ErrorCode: sentinel.CodeInternal, Err: err}
	}
	if dup {
		c.hooks.EmitDispatchSkipped(ctx, exec)
		c.logger.Info("duplicate event skipped",
			slog.String("tenant_id", req.TenantID),
			slog.String("event_id", req.EventID),
		)
		return &sentinel.Result{Success: true, Skipped: true}
	}

	var lastErr error
	for attempt := 0; attempt <= exec.MaxRetries; attempt++ {
		exec.Attempt = attempt

		// The breaker is consulted before every attempt, so a circuit
		// that opens mid-retry stops the sequence.
		if err := c.breakers.Allow(ctx, req.TenantID, settings); err != nil {
			c.hooks.EmitDispatchRejected(ctx, exec, sentinel.CodeCircuitOpen)
			return &sentinel.Result{
				ErrorCode: sentinel.CodeCircuitOpen,
				Attempts:  attempt,
				Err:       err,
			}
		}

		if err := c.limiter.Acquire(req.TenantID, tcfg.ConcurrencyLimit); err != nil {
			// A half-open trial slot granted above must not leak.
			c.breakers.ReleaseProbe(req.TenantID)
			c.hooks.EmitDispatchRejected(ctx, exec, sentinel.CodeConcurrencyExhausted)
			return &sentinel.Result{
				ErrorCode: sentinel.CodeConcurrencyExhausted,
				Attempts:  attempt,
				Err:       err,
			}
		}

		invokeErr := c.handler(ctx, exec)
		c.limiter.Release(req.TenantID)

		if invokeErr == nil {
			c.breakers.OnSuccess(ctx, req.TenantID, settings)
			if _, err := c.guard.MarkProcessed(ctx, req.TenantID, req.EventID, req.WorkflowName); err != nil {
				c.logger.Error("replay record write failed",
					slog.String("tenant_id", req.TenantID),
					slog.String("event_id", req.EventID),
					slog.String("error", err.Error()),
				)
			}
			c.hooks.EmitDispatchSucceeded(ctx, exec)
			return &sentinel.Result{Success: true, Attempts: attempt + 1}
		}

		// Caller cancellation is not an engine failure: the breaker is
		// not charged, a half-open trial slot is handed back, and
		// nothing is dead-lettered.
		if ctx.Err() != nil {
			c.breakers.ReleaseProbe(req.TenantID)
			return &sentinel.Result{
				ErrorCode: sentinel.CodeCancelled,
				Attempts:  attempt + 1,
				Err:       ctx.Err(),
			}
		}

		lastErr = invokeErr
		exec.LastError = invokeErr.Error()
		c.breakers.OnFailure(ctx, req.TenantID, settings)

		if attempt < exec.MaxRetries {
			c.hooks.EmitDispatchRetrying(ctx, exec, invokeErr)
			if err := c.sleep(ctx, c.strategy.Delay(attempt)); err != nil {
				return &sentinel.Result{
					ErrorCode: sentinel.CodeCancelled,
					Attempts:  attempt + 1,
					Err:       err,
				}
			}
		}
	}

	return c.exhausted(ctx, req, exec, opts, lastErr)
}

// exhausted handles the terminal failure after the retry budget is
// spent.
func (c *Controller) exhausted(ctx context.Context, req Request, exec *sentinel.Execution, opts runOpts, lastErr error) *sentinel.Result {
	wrapped := fmt.Errorf("%w: %w", sentinel.ErrMaxRetriesExceeded, lastErr)

	if !opts.deadLetter {
		return &sentinel.Result{
			ErrorCode: sentinel.CodeRetriesExhausted,
			Attempts:  exec.MaxRetries + 1,
			Err:       wrapped,
		}
	}

	msg := &dlq.Message{
		TenantID:     req.TenantID,
		WorkflowName: req.WorkflowName,
		EventID:      req.EventID,
		Payload:      req.Payload,
		ErrorMessage: lastErr.Error(),
		ErrorCode:    string(sentinel.CodeRetriesExhausted),
		RetryCount:   exec.MaxRetries + opts.retryCount,
	}
	if err := c.dlqSvc.Push(ctx, msg); err != nil {
		c.logger.Error("dead-letter capture failed",
			slog.String("tenant_id", req.TenantID),
			slog.String("workflow", req.WorkflowName),
			slog.String("error", err.Error()),
		)
		return &sentinel.Result{
			ErrorCode: sentinel.CodeInternal,
			Attempts:  exec.MaxRetries + 1,
			Err:       errors.Join(wrapped, err),
		}
	}

	c.hooks.EmitDispatchDeadLettered(ctx, exec, lastErr)
	return &sentinel.Result{
		ErrorCode: sentinel.CodeRetriesExhausted,
		Attempts:  exec.MaxRetries + 1,
		DLQID:     msg.ID,
		Err:       wrapped,
	}
}

// sleep waits the backoff delay, returning early on cancellation.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/sentinel"
)

// Logging logs one line per invocation attempt with tenant, workflow,
// attempt number, duration, and outcome.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, exec *sentinel.Execution, next Handler) error {
		start := time.Now()
		err := next(ctx, exec)
		dur := time.Since(start)

		attrs := []any{
			slog.String("tenant_id", exec.TenantID),
			slog.String("workflow", exec.WorkflowName),
			slog.Int("attempt", exec.Attempt),
			slog.Duration("duration", dur),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.Warn("invocation failed", attrs...)
			return err
		}
		logger.Debug("invocation succeeded", attrs...)
		return nil
	}
}

package middleware

import (
	"context"
	"time"

	"github.com/xraph/sentinel"
)

// Timeout bounds each invocation attempt. The per-execution timeout
// takes precedence over the fallback; a zero timeout leaves the context
// untouched.
func Timeout(fallback time.Duration) Middleware {
	return func(ctx context.Context, exec *sentinel.Execution, next Handler) error {
		timeout := exec.Timeout
		if timeout <= 0 {
			timeout = fallback
		}
		if timeout <= 0 {
			return next(ctx, exec)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx, exec)
	}
}

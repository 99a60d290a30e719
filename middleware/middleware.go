// Package middleware provides composable wrappers around engine
// invocation: logging, panic recovery, per-execution timeouts, metrics,
// and tracing.
package middleware

import (
	"context"

	"github.com/xraph/sentinel"
)

// Handler is the terminal invocation step.
type Handler func(ctx context.Context, exec *sentinel.Execution) error

// Middleware wraps a Handler. It may run code before and after next,
// short-circuit by not calling next, or rewrite the error.
type Middleware func(ctx context.Context, exec *sentinel.Execution, next Handler) error

// Chain composes middlewares around a handler. The first middleware is
// the outermost: Chain(h, a, b) runs a, then b, then h.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := h
		h = func(ctx context.Context, exec *sentinel.Execution) error {
			return mw(ctx, exec, next)
		}
	}
	return h
}

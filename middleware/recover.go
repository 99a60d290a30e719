package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/xraph/sentinel"
)

// Recover converts a panic inside the handler into an error, so a
// panicking engine counts as an ordinary failed attempt instead of
// tearing down the dispatcher.
func Recover() Middleware {
	return func(ctx context.Context, exec *sentinel.Execution, next Handler) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("invocation panic: %v\n%s", rec, debug.Stack())
			}
		}()
		return next(ctx, exec)
	}
}

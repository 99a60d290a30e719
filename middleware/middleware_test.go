package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/middleware"
)

func exec() *sentinel.Execution {
	return &sentinel.Execution{TenantID: "tenant-a", WorkflowName: "wf"}
}

func TestChainOrder(t *testing.T) {
	var order []string

	tag := func(name string) middleware.Middleware {
		return func(ctx context.Context, e *sentinel.Execution, next middleware.Handler) error {
			order = append(order, name+":before")
			err := next(ctx, e)
			order = append(order, name+":after")
			return err
		}
	}

	h := middleware.Chain(func(context.Context, *sentinel.Execution) error {
		order = append(order, "handler")
		return nil
	}, tag("outer"), tag("inner"))

	if err := h(context.Background(), exec()); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChainNoMiddleware(t *testing.T) {
	called := false
	h := middleware.Chain(func(context.Context, *sentinel.Execution) error {
		called = true
		return nil
	})
	if err := h(context.Background(), exec()); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if !called {
		t.Error("handler not called")
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	h := middleware.Chain(func(context.Context, *sentinel.Execution) error {
		panic("engine exploded")
	}, middleware.Recover())

	err := h(context.Background(), exec())
	if err == nil {
		t.Fatal("error = nil, want panic converted to error")
	}
	if !strings.Contains(err.Error(), "engine exploded") {
		t.Errorf("error = %q, want it to contain the panic value", err)
	}
}

func TestRecoverPassesThroughError(t *testing.T) {
	want := errors.New("ordinary failure")
	h := middleware.Chain(func(context.Context, *sentinel.Execution) error {
		return want
	}, middleware.Recover())

	if err := h(context.Background(), exec()); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestTimeoutCancelsSlowHandler(t *testing.T) {
	h := middleware.Chain(func(ctx context.Context, _ *sentinel.Execution) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}, middleware.Timeout(20*time.Millisecond))

	err := h(context.Background(), exec())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestTimeoutPerExecutionOverride(t *testing.T) {
	var deadlineSet bool
	h := middleware.Chain(func(ctx context.Context, _ *sentinel.Execution) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}, middleware.Timeout(0))

	e := exec()
	e.Timeout = time.Minute
	if err := h(context.Background(), e); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if !deadlineSet {
		t.Error("deadline not set from the execution's own timeout")
	}
}

func TestTimeoutZeroLeavesContext(t *testing.T) {
	var deadlineSet bool
	h := middleware.Chain(func(ctx context.Context, _ *sentinel.Execution) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}, middleware.Timeout(0))

	if err := h(context.Background(), exec()); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if deadlineSet {
		t.Error("deadline set with zero timeout, want untouched context")
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	want := errors.New("failure")

	h := middleware.Chain(func(context.Context, *sentinel.Execution) error {
		return want
	}, middleware.Logging(logger))

	if err := h(context.Background(), exec()); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}

	h = middleware.Chain(func(context.Context, *sentinel.Execution) error {
		return nil
	}, middleware.Logging(logger))

	if err := h(context.Background(), exec()); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

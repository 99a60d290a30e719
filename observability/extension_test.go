package observability_test

import (
	"context"
	"testing"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/observability"
)

func newTestExtension() *observability.MetricsExtension {
	return observability.NewMetricsExtensionWithFactory(gu.NewMetricsCollector("test"))
}

func newTestExecution() *sentinel.Execution {
	return &sentinel.Execution{
		ID:           id.NewExecutionID(),
		TenantID:     "tenant-a",
		WorkflowName: "order-flow",
	}
}

func TestMetricsExtension_Name(t *testing.T) {
	e := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_DispatchSucceeded(t *testing.T) {
	e := newTestExtension()
	e.OnDispatchSucceeded(context.Background(), newTestExecution())
	if e.DispatchSucceeded.Value() != 1 {
		t.Errorf("DispatchSucceeded: want 1, got %v", e.DispatchSucceeded.Value())
	}
}

func TestMetricsExtension_DispatchRetrying(t *testing.T) {
	e := newTestExtension()
	e.OnDispatchRetrying(context.Background(), newTestExecution(), sentinel.ErrCircuitOpen)
	if e.DispatchRetried.Value() != 1 {
		t.Errorf("DispatchRetried: want 1, got %v", e.DispatchRetried.Value())
	}
}

func TestMetricsExtension_DispatchRejected(t *testing.T) {
	e := newTestExtension()
	e.OnDispatchRejected(context.Background(), newTestExecution(), sentinel.CodeConcurrencyExhausted)
	if e.DispatchRejected.Value() != 1 {
		t.Errorf("DispatchRejected: want 1, got %v", e.DispatchRejected.Value())
	}
}

func TestMetricsExtension_DispatchSkipped(t *testing.T) {
	e := newTestExtension()
	e.OnDispatchSkipped(context.Background(), newTestExecution())
	if e.DispatchSkipped.Value() != 1 {
		t.Errorf("DispatchSkipped: want 1, got %v", e.DispatchSkipped.Value())
	}
}

func TestMetricsExtension_DispatchDeadLettered(t *testing.T) {
	e := newTestExtension()
	e.OnDispatchDeadLettered(context.Background(), newTestExecution(), sentinel.ErrMaxRetriesExceeded)
	if e.DispatchDeadLettered.Value() != 1 {
		t.Errorf("DispatchDeadLettered: want 1, got %v", e.DispatchDeadLettered.Value())
	}
}

func TestMetricsExtension_BreakerStateChanged(t *testing.T) {
	e := newTestExtension()
	ctx := context.Background()

	e.OnBreakerStateChanged(ctx, "tenant-a", breaker.StateClosed, breaker.StateOpen, "threshold reached")
	if e.BreakerOpened.Value() != 1 {
		t.Errorf("BreakerOpened: want 1, got %v", e.BreakerOpened.Value())
	}

	e.OnBreakerStateChanged(ctx, "tenant-a", breaker.StateHalfOpen, breaker.StateClosed, "trial succeeded")
	if e.BreakerClosed.Value() != 1 {
		t.Errorf("BreakerClosed: want 1, got %v", e.BreakerClosed.Value())
	}

	// A transition to half-open touches neither counter.
	e.OnBreakerStateChanged(ctx, "tenant-a", breaker.StateOpen, breaker.StateHalfOpen, "recovery elapsed")
	if e.BreakerOpened.Value() != 1 || e.BreakerClosed.Value() != 1 {
		t.Errorf("half-open transition changed counters: opened %v closed %v",
			e.BreakerOpened.Value(), e.BreakerClosed.Value())
	}
}

func TestMetricsExtension_DLQSwept(t *testing.T) {
	e := newTestExtension()
	e.OnDLQSwept(context.Background(), 3)
	if e.DLQSwept.Value() != 3 {
		t.Errorf("DLQSwept: want 3, got %v", e.DLQSwept.Value())
	}
}

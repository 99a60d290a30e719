package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/sentinel"
)

const instrumentationName = "github.com/xraph/sentinel/middleware"

// Metrics records invocation counts and latency through the global
// OpenTelemetry meter provider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is Metrics with an injectable meter, for tests and
// callers that manage their own provider.
func MetricsWithMeter(meter metric.Meter) Middleware {
	invocations, _ := meter.Int64Counter("sentinel.invocations",
		metric.WithDescription("Engine invocation attempts"),
	)
	failures, _ := meter.Int64Counter("sentinel.invocation.failures",
		metric.WithDescription("Failed engine invocation attempts"),
	)
	duration, _ := meter.Float64Histogram("sentinel.invocation.duration",
		metric.WithDescription("Engine invocation latency"),
		metric.WithUnit("ms"),
	)

	return func(ctx context.Context, exec *sentinel.Execution, next Handler) error {
		attrs := metric.WithAttributes(
			attribute.String("tenant_id", exec.TenantID),
			attribute.String("workflow", exec.WorkflowName),
		)

		start := time.Now()
		err := next(ctx, exec)

		invocations.Add(ctx, 1, attrs)
		duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		if err != nil {
			failures.Add(ctx, 1, attrs)
		}
		return err
	}
}

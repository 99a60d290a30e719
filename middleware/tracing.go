package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/sentinel"
)

// Tracing opens a span per invocation attempt through the global
// OpenTelemetry tracer provider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer is Tracing with an injectable tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, exec *sentinel.Execution, next Handler) error {
		ctx, span := tracer.Start(ctx, "sentinel.invoke",
			trace.WithAttributes(
				attribute.String("tenant_id", exec.TenantID),
				attribute.String("workflow", exec.WorkflowName),
				attribute.Int("attempt", exec.Attempt),
			),
		)
		defer span.End()

		err := next(ctx, exec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}

package observability

import (
	"context"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/hook"
)

// Compile-time interface checks.
var (
	_ hook.Extension                = (*MetricsExtension)(nil)
	_ hook.DispatchSucceededHook    = (*MetricsExtension)(nil)
	_ hook.DispatchRetryingHook     = (*MetricsExtension)(nil)
	_ hook.DispatchRejectedHook     = (*MetricsExtension)(nil)
	_ hook.DispatchSkippedHook      = (*MetricsExtension)(nil)
	_ hook.DispatchDeadLetteredHook = (*MetricsExtension)(nil)
	_ hook.BreakerStateChangedHook  = (*MetricsExtension)(nil)
	_ hook.DLQSweptHook             = (*MetricsExtension)(nil)
)

// MetricsExtension records reliability lifecycle metrics via a go-utils
// MetricFactory. Register it on the controller's hook registry to track
// dispatch outcomes, breaker trips, and dead-letter volume.
type MetricsExtension struct {
	DispatchSucceeded    gu.Counter
	DispatchRetried      gu.Counter
	DispatchRejected     gu.Counter
	DispatchSkipped      gu.Counter
	DispatchDeadLettered gu.Counter
	BreakerOpened        gu.Counter
	BreakerClosed        gu.Counter
	DLQSwept             gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default
// metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("sentinel/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the
// provided MetricFactory. Use fapp.Metrics() in forge extensions, or
// gu.NewMetricsCollector for testing.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		DispatchSucceeded:    factory.Counter("sentinel.dispatch.succeeded"),
		DispatchRetried:      factory.Counter("sentinel.dispatch.retried"),
		DispatchRejected:     factory.Counter("sentinel.dispatch.rejected"),
		DispatchSkipped:      factory.Counter("sentinel.dispatch.skipped"),
		DispatchDeadLettered: factory.Counter("sentinel.dispatch.dead_lettered"),
		BreakerOpened:        factory.Counter("sentinel.breaker.opened"),
		BreakerClosed:        factory.Counter("sentinel.breaker.closed"),
		DLQSwept:             factory.Counter("sentinel.dlq.swept"),
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnDispatchSucceeded implements hook.DispatchSucceededHook.
func (m *MetricsExtension) OnDispatchSucceeded(_ context.Context, _ *sentinel.Execution) {
	m.DispatchSucceeded.Inc()
}

// OnDispatchRetrying implements hook.DispatchRetryingHook.
func (m *MetricsExtension) OnDispatchRetrying(_ context.Context, _ *sentinel.Execution, _ error) {
	m.DispatchRetried.Inc()
}

// OnDispatchRejected implements hook.DispatchRejectedHook.
func (m *MetricsExtension) OnDispatchRejected(_ context.Context, _ *sentinel.Execution, _ sentinel.ErrorCode) {
	m.DispatchRejected.Inc()
}

// OnDispatchSkipped implements hook.DispatchSkippedHook.
func (m *MetricsExtension) OnDispatchSkipped(_ context.Context, _ *sentinel.Execution) {
	m.DispatchSkipped.Inc()
}

// OnDispatchDeadLettered implements hook.DispatchDeadLetteredHook.
func (m *MetricsExtension) OnDispatchDeadLettered(_ context.Context, _ *sentinel.Execution, _ error) {
	m.DispatchDeadLettered.Inc()
}

// OnBreakerStateChanged implements hook.BreakerStateChangedHook.
func (m *MetricsExtension) OnBreakerStateChanged(_ context.Context, _ string, _, to breaker.State, _ string) {
	switch to {
	case breaker.StateOpen:
		m.BreakerOpened.Inc()
	case breaker.StateClosed:
		m.BreakerClosed.Inc()
	}
}

// OnDLQSwept implements hook.DLQSweptHook.
func (m *MetricsExtension) OnDLQSwept(_ context.Context, removed int64) {
	for i := int64(0); i < removed; i++ {
		m.DLQSwept.Inc()
	}
}

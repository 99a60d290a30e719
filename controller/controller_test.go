package controller_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/backoff"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/controller"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/store/memory"
)

// engine is a test invoker whose behavior can be swapped at runtime.
type engine struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, exec *sentinel.Execution) error
	calls int
}

func (e *engine) set(fn func(ctx context.Context, exec *sentinel.Execution) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fn = fn
}

func (e *engine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *engine) Invoke(ctx context.Context, exec *sentinel.Execution) error {
	e.mu.Lock()
	fn := e.fn
	e.calls++
	e.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, exec)
}

func testConfig() sentinel.Config {
	cfg := sentinel.DefaultConfig()
	cfg.ExecutionTimeout = 5 * time.Second
	return cfg
}

func newController(t *testing.T, st *memory.Store, eng *engine, opts ...controller.Option) *controller.Controller {
	t.Helper()

	base := []controller.Option{
		controller.WithConfig(testConfig()),
		controller.WithLogger(slog.New(slog.DiscardHandler)),
		controller.WithBackoff(backoff.NewConstant(time.Millisecond)),
	}
	c, err := controller.New(st, eng, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	eng := &engine{}
	if _, err := controller.New(nil, eng); !errors.Is(err, sentinel.ErrNoStore) {
		t.Errorf("New(nil store) = %v, want ErrNoStore", err)
	}
	if _, err := controller.New(memory.New(), nil); !errors.Is(err, sentinel.ErrNoInvoker) {
		t.Errorf("New(nil invoker) = %v, want ErrNoInvoker", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	eng := &engine{}
	c := newController(t, st, eng)

	res := c.Dispatch(ctx, controller.Request{
		TenantID:     "tenant-a",
		WorkflowName: "orders.fulfill",
		EventID:      "evt-1",
	})

	if !res.Success {
		t.Fatalf("Success = false, Err = %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	processed, err := st.IsProcessed(ctx, "tenant-a", "evt-1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !processed {
		t.Error("event not recorded as processed after success")
	}
}

func TestDispatchValidation(t *testing.T) {
	c := newController(t, memory.New(), &engine{})

	res := c.Dispatch(context.Background(), controller.Request{WorkflowName: "wf"})
	if res.Success || res.ErrorCode != sentinel.CodeInternal {
		t.Errorf("result = %+v, want internal error for missing tenant_id", res)
	}
}

func TestDuplicateEventSkipped(t *testing.T) {
	ctx := context.Background()
	eng := &engine{}
	c := newController(t, memory.New(), eng)

	req := controller.Request{TenantID: "tenant-a", WorkflowName: "wf", EventID: "evt-1"}

	if res := c.Dispatch(ctx, req); !res.Success {
		t.Fatalf("first dispatch failed: %v", res.Err)
	}
	res := c.Dispatch(ctx, req)
	if !res.Success || !res.Skipped {
		t.Errorf("second dispatch = %+v, want successful skip", res)
	}
	if eng.callCount() != 1 {
		t.Errorf("engine called %d times, want 1 (duplicate must not invoke)", eng.callCount())
	}
}

func TestRetryThenSuccess(t *testing.T) {
	ctx := context.Background()
	eng := &engine{}
	failures := 2
	eng.set(func(context.Context, *sentinel.Execution) error {
		if failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	})
	c := newController(t, memory.New(), eng)

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if !res.Success {
		t.Fatalf("Success = false, Err = %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}

	n, err := c.DLQ().Count(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("DLQ count = %d, want 0 after eventual success", n)
	}
}

func TestExhaustionDeadLetters(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		return errors.New("permanent failure")
	})
	c := newController(t, st, eng)

	res := c.Dispatch(ctx, controller.Request{
		TenantID:     "tenant-a",
		WorkflowName: "wf",
		Payload:      []byte(`{"k":"v"}`),
	})

	if res.Success {
		t.Fatal("Success = true, want failure")
	}
	if res.ErrorCode != sentinel.CodeRetriesExhausted {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, sentinel.CodeRetriesExhausted)
	}
	if res.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4 (initial + 3 retries)", res.Attempts)
	}
	if !errors.Is(res.Err, sentinel.ErrMaxRetriesExceeded) {
		t.Errorf("Err = %v, want ErrMaxRetriesExceeded in chain", res.Err)
	}
	if res.DLQID.IsNil() {
		t.Fatal("DLQID not set")
	}

	msgs, err := c.DLQ().List(ctx, dlq.ListOpts{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("DLQ entries = %d, want exactly 1", len(msgs))
	}
	msg := msgs[0]
	if msg.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", msg.RetryCount)
	}
	if msg.ErrorMessage != "permanent failure" {
		t.Errorf("ErrorMessage = %q, want %q", msg.ErrorMessage, "permanent failure")
	}
	if string(msg.Payload) != `{"k":"v"}` {
		t.Errorf("Payload = %s, want original payload preserved", msg.Payload)
	}

	// A failed dispatch must not mark the event processed.
	res = c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.Skipped {
		t.Error("subsequent dispatch skipped, failures must not create replay records")
	}
}

func TestBreakerOpensAndIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxRetries = 0
	cfg.BreakerThreshold = 3
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		return errors.New("down")
	})
	c := newController(t, memory.New(), eng, controller.WithConfig(cfg))

	req := controller.Request{TenantID: "tenant-a", WorkflowName: "wf"}
	for i := 0; i < 3; i++ {
		res := c.Dispatch(ctx, req)
		if res.ErrorCode != sentinel.CodeRetriesExhausted {
			t.Fatalf("dispatch %d ErrorCode = %q, want retries_exhausted", i, res.ErrorCode)
		}
	}

	res := c.Dispatch(ctx, req)
	if res.ErrorCode != sentinel.CodeCircuitOpen {
		t.Fatalf("ErrorCode after threshold = %q, want %q", res.ErrorCode, sentinel.CodeCircuitOpen)
	}
	if eng.callCount() != 3 {
		t.Errorf("engine called %d times, want 3 (open circuit must not invoke)", eng.callCount())
	}

	// A rejection adds no dead-letter entry.
	n, err := c.DLQ().Count(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("DLQ count = %d, want 3 (one per exhausted dispatch, none for the rejection)", n)
	}

	// Another tenant is unaffected.
	eng.set(nil)
	other := c.Dispatch(ctx, controller.Request{TenantID: "tenant-b", WorkflowName: "wf"})
	if !other.Success {
		t.Errorf("tenant-b dispatch failed: %v", other.Err)
	}

	// Manual reset restores dispatch for the tripped tenant.
	if err := c.ResetBreaker(ctx, "tenant-a", "operator"); err != nil {
		t.Fatalf("ResetBreaker failed: %v", err)
	}
	if res := c.Dispatch(ctx, req); !res.Success {
		t.Errorf("dispatch after reset failed: %v", res.Err)
	}
}

func TestBreakerOpenMidRetrySequence(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.BreakerThreshold = 2
	cfg.MaxRetries = 3
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		return errors.New("down")
	})
	c := newController(t, memory.New(), eng, controller.WithConfig(cfg))

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})

	// The second failure opens the circuit; the third attempt's breaker
	// check rejects without invoking, and nothing is dead-lettered.
	if res.ErrorCode != sentinel.CodeCircuitOpen {
		t.Fatalf("ErrorCode = %q, want %q", res.ErrorCode, sentinel.CodeCircuitOpen)
	}
	if eng.callCount() != 2 {
		t.Errorf("engine called %d times, want 2", eng.callCount())
	}
	n, err := c.DLQ().Count(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("DLQ count = %d, want 0 (circuit rejection is not exhaustion)", n)
	}
}

func TestConcurrencyLimitRejectsSixth(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxRetries = 0
	eng := &engine{}
	release := make(chan struct{})
	started := make(chan struct{}, 6)
	eng.set(func(ctx context.Context, _ *sentinel.Execution) error {
		started <- struct{}{}
		<-release
		return nil
	})
	c := newController(t, memory.New(), eng, controller.WithConfig(cfg))

	results := make(chan *sentinel.Result, 6)
	for i := 0; i < 5; i++ {
		go func() {
			results <- c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
		}()
	}
	// Wait until all five hold slots before the sixth arrives.
	for i := 0; i < 5; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for in-flight dispatches")
		}
	}

	sixth := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if sixth.ErrorCode != sentinel.CodeConcurrencyExhausted {
		t.Errorf("sixth ErrorCode = %q, want %q", sixth.ErrorCode, sentinel.CodeConcurrencyExhausted)
	}

	close(release)
	for i := 0; i < 5; i++ {
		res := <-results
		if !res.Success {
			t.Errorf("in-flight dispatch failed: %v", res.Err)
		}
	}

	// Slots were released; the tenant is dispatchable again.
	if res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"}); !res.Success {
		t.Errorf("dispatch after release failed: %v", res.Err)
	}
}

func TestCancellationReleasesSlotWithoutDLQ(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	eng := &engine{}
	eng.set(func(ctx context.Context, _ *sentinel.Execution) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := newController(t, memory.New(), eng, controller.WithConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.ErrorCode != sentinel.CodeCancelled {
		t.Fatalf("ErrorCode = %q, want %q", res.ErrorCode, sentinel.CodeCancelled)
	}

	n, err := c.DLQ().Count(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("DLQ count = %d, want 0 (cancellation is not a failure)", n)
	}

	// The slot was released and the breaker was not charged.
	eng.set(nil)
	if res := c.Dispatch(context.Background(), controller.Request{TenantID: "tenant-a", WorkflowName: "wf"}); !res.Success {
		t.Errorf("dispatch after cancellation failed: %v", res.Err)
	}
}

func TestCancellationDuringHalfOpenTrial(t *testing.T) {
	st := memory.New()
	openedAt := time.Now().UTC().Add(-10 * time.Minute)
	if err := st.SaveBreaker(context.Background(), &breaker.TenantState{
		TenantID:     "tenant-a",
		State:        breaker.StateOpen,
		FailureCount: 10,
		WindowStart:  openedAt,
		OpenedAt:     &openedAt,
	}); err != nil {
		t.Fatalf("SaveBreaker failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng := &engine{}
	eng.set(func(ctx context.Context, _ *sentinel.Execution) error {
		cancel()
		return ctx.Err()
	})
	c := newController(t, st, eng)

	// Recovery has elapsed, so this dispatch is admitted as the
	// half-open trial — and the caller cancels it mid-flight.
	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.ErrorCode != sentinel.CodeCancelled {
		t.Fatalf("ErrorCode = %q, want %q", res.ErrorCode, sentinel.CodeCancelled)
	}

	// The abandoned trial slot must be handed back: the next dispatch
	// takes it and closes the circuit on success.
	eng.set(nil)
	res = c.Dispatch(context.Background(), controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if !res.Success {
		t.Fatalf("dispatch after cancelled trial = %q (%v), want success", res.ErrorCode, res.Err)
	}

	snap, err := c.Breakers().Snapshot(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.State != breaker.StateClosed {
		t.Errorf("breaker state = %q, want %q", snap.State, breaker.StateClosed)
	}
}

func TestPanickingEngineBecomesFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxRetries = 0
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		panic("engine exploded")
	})
	c := newController(t, memory.New(), eng, controller.WithConfig(cfg))

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.Success {
		t.Fatal("Success = true, want failure")
	}
	if res.ErrorCode != sentinel.CodeRetriesExhausted {
		t.Errorf("ErrorCode = %q, want %q", res.ErrorCode, sentinel.CodeRetriesExhausted)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "engine exploded") {
		t.Errorf("Err = %v, want panic value in chain", res.Err)
	}
}

func TestDLQRetryThroughPipeline(t *testing.T) {
	ctx := context.Background()
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		return errors.New("down")
	})
	c := newController(t, memory.New(), eng)

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.DLQID.IsNil() {
		t.Fatalf("dispatch did not dead-letter: %+v", res)
	}

	// Engine recovers; a manual retry drains the entry.
	eng.set(nil)
	retryRes, err := c.DLQ().Retry(ctx, res.DLQID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if !retryRes.Success {
		t.Fatalf("retry result = %+v, want success", retryRes)
	}
	if _, err := c.DLQ().Get(ctx, res.DLQID); !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("Get after successful retry = %v, want ErrDLQNotFound", err)
	}
}

func TestDLQRetryFailureKeepsSingleEntry(t *testing.T) {
	ctx := context.Background()
	eng := &engine{}
	eng.set(func(context.Context, *sentinel.Execution) error {
		return errors.New("still down")
	})
	c := newController(t, memory.New(), eng)

	res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"})
	if res.DLQID.IsNil() {
		t.Fatalf("dispatch did not dead-letter: %+v", res)
	}

	retryRes, err := c.DLQ().Retry(ctx, res.DLQID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retryRes.Success {
		t.Fatal("retry succeeded, want failure")
	}

	msgs, err := c.DLQ().List(ctx, dlq.ListOpts{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("DLQ entries = %d, want 1 (failed retry updates in place)", len(msgs))
	}
	if msgs[0].RetryCount != 4 {
		t.Errorf("RetryCount = %d, want 4", msgs[0].RetryCount)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	eng := &engine{}
	c := newController(t, memory.New(), eng)

	if res := c.Dispatch(ctx, controller.Request{TenantID: "tenant-a", WorkflowName: "wf"}); !res.Success {
		t.Fatalf("dispatch failed: %v", res.Err)
	}

	st, err := c.Status(ctx, "")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.GlobalLimit != sentinel.DefaultConfig().GlobalConcurrency {
		t.Errorf("GlobalLimit = %d, want %d", st.GlobalLimit, sentinel.DefaultConfig().GlobalConcurrency)
	}
	if len(st.Tenants) != 1 {
		t.Fatalf("Tenants = %d, want 1", len(st.Tenants))
	}
	ts := st.Tenants[0]
	if ts.TenantID != "tenant-a" {
		t.Errorf("TenantID = %q, want tenant-a", ts.TenantID)
	}
	if ts.Breaker == nil || ts.Breaker.State != breaker.StateClosed {
		t.Errorf("Breaker = %+v, want closed state", ts.Breaker)
	}
	if ts.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", ts.InFlight)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	c := newController(t, memory.New(), &engine{})

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestConcurrentLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newController(t, memory.New(), &engine{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				t.Errorf("Start failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := c.Stop(ctx); err != nil {
				t.Errorf("Stop failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := c.Stop(ctx); err != nil {
		t.Errorf("final Stop failed: %v", err)
	}
}

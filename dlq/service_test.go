package dlq_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
)

// stubStore is an in-memory dlq.Store.
type stubStore struct {
	mu   sync.Mutex
	msgs map[id.DLQID]*dlq.Message
}

func newStubStore() *stubStore {
	return &stubStore{msgs: make(map[id.DLQID]*dlq.Message)}
}

func (s *stubStore) PushDLQ(_ context.Context, msg *dlq.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.msgs[msg.ID] = &cp
	return nil
}

func (s *stubStore) GetDLQ(_ context.Context, msgID id.DLQID) (*dlq.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[msgID]
	if !ok {
		return nil, sentinel.ErrDLQNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *stubStore) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*dlq.Message
	for _, msg := range s.msgs {
		if opts.TenantID != "" && msg.TenantID != opts.TenantID {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStore) UpdateDLQ(_ context.Context, msg *dlq.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[msg.ID]; !ok {
		return sentinel.ErrDLQNotFound
	}
	cp := *msg
	s.msgs[msg.ID] = &cp
	return nil
}

func (s *stubStore) DeleteDLQ(_ context.Context, msgID id.DLQID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[msgID]; !ok {
		return sentinel.ErrDLQNotFound
	}
	delete(s.msgs, msgID)
	return nil
}

func (s *stubStore) PurgeExpiredDLQ(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for msgID, msg := range s.msgs {
		if msg.Expired(now) {
			delete(s.msgs, msgID)
			n++
		}
	}
	return n, nil
}

func (s *stubStore) CountDLQ(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, msg := range s.msgs {
		if tenantID == "" || msg.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// stubRedispatcher returns a canned result and records the messages it
// was handed.
type stubRedispatcher struct {
	result *sentinel.Result
	seen   []*dlq.Message
}

func (r *stubRedispatcher) Redispatch(_ context.Context, msg *dlq.Message) (*sentinel.Result, error) {
	cp := *msg
	r.seen = append(r.seen, &cp)
	return r.result, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestPushStampsIDAndExpiry(t *testing.T) {
	store := newStubStore()
	svc := dlq.NewService(store, 24*time.Hour, discardLogger())

	msg := &dlq.Message{
		TenantID:     "tenant-a",
		WorkflowName: "orders.fulfill",
		ErrorMessage: "boom",
		ErrorCode:    string(sentinel.CodeRetriesExhausted),
		RetryCount:   3,
	}
	if err := svc.Push(context.Background(), msg); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if msg.ID.IsNil() {
		t.Error("ID not assigned")
	}
	wantExpiry := time.Now().UTC().Add(24 * time.Hour)
	if d := msg.ExpiresAt.Sub(wantExpiry); d < -time.Minute || d > time.Minute {
		t.Errorf("ExpiresAt = %v, want about %v", msg.ExpiresAt, wantExpiry)
	}
}

func TestGetUnknownMessage(t *testing.T) {
	svc := dlq.NewService(newStubStore(), 24*time.Hour, discardLogger())

	_, err := svc.Get(context.Background(), id.NewDLQID())
	if !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("Get unknown = %v, want ErrDLQNotFound", err)
	}
}

func TestRetrySuccessDeletesMessage(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	red := &stubRedispatcher{result: &sentinel.Result{Success: true, Attempts: 1}}
	svc := dlq.NewService(store, 24*time.Hour, discardLogger(), dlq.WithRedispatcher(red))

	msg := &dlq.Message{TenantID: "tenant-a", WorkflowName: "wf", RetryCount: 3}
	if err := svc.Push(ctx, msg); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	res, err := svc.Retry(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if !res.Success {
		t.Error("Retry result Success = false, want true")
	}
	if len(red.seen) != 1 {
		t.Fatalf("redispatched %d messages, want 1", len(red.seen))
	}
	if red.seen[0].RetryCount != 4 {
		t.Errorf("redispatched RetryCount = %d, want 4", red.seen[0].RetryCount)
	}
	if _, err := svc.Get(ctx, msg.ID); !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("Get after successful retry = %v, want ErrDLQNotFound", err)
	}
}

func TestRetryFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	red := &stubRedispatcher{result: &sentinel.Result{
		Success:   false,
		ErrorCode: sentinel.CodeRetriesExhausted,
		Err:       errors.New("still broken"),
	}}
	svc := dlq.NewService(store, 24*time.Hour, discardLogger(), dlq.WithRedispatcher(red))

	msg := &dlq.Message{TenantID: "tenant-a", WorkflowName: "wf", RetryCount: 3}
	if err := svc.Push(ctx, msg); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if _, err := svc.Retry(ctx, msg.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	kept, err := svc.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get after failed retry = %v, want message kept", err)
	}
	if kept.RetryCount != 4 {
		t.Errorf("RetryCount = %d, want 4", kept.RetryCount)
	}
	if kept.ErrorMessage != "still broken" {
		t.Errorf("ErrorMessage = %q, want %q", kept.ErrorMessage, "still broken")
	}
}

func TestRetryWithoutRedispatcher(t *testing.T) {
	svc := dlq.NewService(newStubStore(), 24*time.Hour, discardLogger())

	_, err := svc.Retry(context.Background(), id.NewDLQID())
	if !errors.Is(err, sentinel.ErrNoInvoker) {
		t.Errorf("Retry without redispatcher = %v, want ErrNoInvoker", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	svc := dlq.NewService(store, 24*time.Hour, discardLogger())

	// One message 23 hours into a 24 hour retention, one past it.
	fresh := &dlq.Message{TenantID: "tenant-a", WorkflowName: "wf"}
	if err := svc.Push(ctx, fresh); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	fresh.ExpiresAt = time.Now().UTC().Add(time.Hour)
	if err := store.UpdateDLQ(ctx, fresh); err != nil {
		t.Fatalf("UpdateDLQ failed: %v", err)
	}

	stale := &dlq.Message{TenantID: "tenant-a", WorkflowName: "wf"}
	if err := svc.Push(ctx, stale); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	stale.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := store.UpdateDLQ(ctx, stale); err != nil {
		t.Fatalf("UpdateDLQ failed: %v", err)
	}

	removed, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := svc.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh message gone after sweep: %v", err)
	}
	if _, err := svc.Get(ctx, stale.ID); !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("stale message Get = %v, want ErrDLQNotFound", err)
	}
}

func TestListFiltersByTenant(t *testing.T) {
	ctx := context.Background()
	svc := dlq.NewService(newStubStore(), 24*time.Hour, discardLogger())

	for _, tenantID := range []string{"tenant-a", "tenant-a", "tenant-b"} {
		if err := svc.Push(ctx, &dlq.Message{TenantID: tenantID, WorkflowName: "wf"}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	msgs, err := svc.List(ctx, dlq.ListOpts{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("len(msgs) = %d, want 2", len(msgs))
	}

	n, err := svc.Count(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSweeperStartStop(t *testing.T) {
	svc := dlq.NewService(newStubStore(), 24*time.Hour, discardLogger())

	sw, err := dlq.NewSweeper(svc, "@hourly", discardLogger())
	if err != nil {
		t.Fatalf("NewSweeper failed: %v", err)
	}
	sw.Start()
	sw.Start() // second Start is a no-op
	sw.Stop()
	sw.Stop() // second Stop is a no-op
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	svc := dlq.NewService(newStubStore(), 24*time.Hour, discardLogger())

	if _, err := dlq.NewSweeper(svc, "not a schedule", discardLogger()); err == nil {
		t.Error("NewSweeper accepted a bad schedule, want error")
	}
}

package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/store/memory"
	"github.com/xraph/sentinel/tenant"
)

func TestPingAfterClose(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping on open store = %v, want nil", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, sentinel.ErrStoreClosed) {
		t.Errorf("Ping after Close = %v, want ErrStoreClosed", err)
	}
}

func TestBreakerRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.GetBreaker(ctx, "tenant-a"); !errors.Is(err, sentinel.ErrBreakerNotFound) {
		t.Errorf("GetBreaker unknown = %v, want ErrBreakerNotFound", err)
	}

	now := time.Now().UTC()
	st := &breaker.TenantState{
		TenantID:     "tenant-a",
		State:        breaker.StateOpen,
		FailureCount: 10,
		WindowStart:  now,
		OpenedAt:     &now,
	}
	if err := s.SaveBreaker(ctx, st); err != nil {
		t.Fatalf("SaveBreaker failed: %v", err)
	}

	got, err := s.GetBreaker(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("GetBreaker failed: %v", err)
	}
	if got.State != breaker.StateOpen || got.FailureCount != 10 {
		t.Errorf("got %+v, want state open with 10 failures", got)
	}

	// The store returns copies, not shared pointers.
	got.FailureCount = 99
	again, err := s.GetBreaker(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("GetBreaker failed: %v", err)
	}
	if again.FailureCount != 10 {
		t.Errorf("FailureCount = %d after caller mutation, want 10", again.FailureCount)
	}
}

func TestDLQLifecycle(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	msgs := []*dlq.Message{
		{ID: id.NewDLQID(), TenantID: "tenant-a", WorkflowName: "wf-1"},
		{ID: id.NewDLQID(), TenantID: "tenant-a", WorkflowName: "wf-2"},
		{ID: id.NewDLQID(), TenantID: "tenant-b", WorkflowName: "wf-3"},
	}
	for _, msg := range msgs {
		if err := s.PushDLQ(ctx, msg); err != nil {
			t.Fatalf("PushDLQ failed: %v", err)
		}
	}

	listed, err := s.ListDLQ(ctx, dlq.ListOpts{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("ListDLQ failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("len(listed) = %d, want 2", len(listed))
	}
	if listed[0].WorkflowName != "wf-2" {
		t.Errorf("first listed = %q, want newest first (wf-2)", listed[0].WorkflowName)
	}

	n, err := s.CountDLQ(ctx, "")
	if err != nil {
		t.Fatalf("CountDLQ failed: %v", err)
	}
	if n != 3 {
		t.Errorf("CountDLQ all = %d, want 3", n)
	}

	msgs[0].RetryCount = 4
	if err := s.UpdateDLQ(ctx, msgs[0]); err != nil {
		t.Fatalf("UpdateDLQ failed: %v", err)
	}
	got, err := s.GetDLQ(ctx, msgs[0].ID)
	if err != nil {
		t.Fatalf("GetDLQ failed: %v", err)
	}
	if got.RetryCount != 4 {
		t.Errorf("RetryCount = %d, want 4", got.RetryCount)
	}

	if err := s.DeleteDLQ(ctx, msgs[0].ID); err != nil {
		t.Fatalf("DeleteDLQ failed: %v", err)
	}
	if _, err := s.GetDLQ(ctx, msgs[0].ID); !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("GetDLQ after delete = %v, want ErrDLQNotFound", err)
	}
	if err := s.DeleteDLQ(ctx, msgs[0].ID); !errors.Is(err, sentinel.ErrDLQNotFound) {
		t.Errorf("double DeleteDLQ = %v, want ErrDLQNotFound", err)
	}
}

func TestDLQListPagination(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.PushDLQ(ctx, &dlq.Message{ID: id.NewDLQID(), TenantID: "tenant-a"}); err != nil {
			t.Fatalf("PushDLQ failed: %v", err)
		}
	}

	page, err := s.ListDLQ(ctx, dlq.ListOpts{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListDLQ failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("len(page) = %d, want 1", len(page))
	}

	page, err = s.ListDLQ(ctx, dlq.ListOpts{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("ListDLQ failed: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("len(page) past end = %d, want 0", len(page))
	}
}

func TestPurgeExpiredDLQ(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	expired := &dlq.Message{ID: id.NewDLQID(), TenantID: "tenant-a", ExpiresAt: now.Add(-time.Minute)}
	fresh := &dlq.Message{ID: id.NewDLQID(), TenantID: "tenant-a", ExpiresAt: now.Add(time.Hour)}
	forever := &dlq.Message{ID: id.NewDLQID(), TenantID: "tenant-a"}

	for _, msg := range []*dlq.Message{expired, fresh, forever} {
		if err := s.PushDLQ(ctx, msg); err != nil {
			t.Fatalf("PushDLQ failed: %v", err)
		}
	}

	n, err := s.PurgeExpiredDLQ(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredDLQ failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, err := s.GetDLQ(ctx, fresh.ID); err != nil {
		t.Errorf("fresh message gone: %v", err)
	}
	if _, err := s.GetDLQ(ctx, forever.ID); err != nil {
		t.Errorf("message without expiry gone: %v", err)
	}
}

func TestMarkProcessedCAS(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.MarkProcessed(ctx, &replay.Record{
				TenantID: "tenant-a",
				EventID:  "evt-1",
			})
			if err != nil {
				t.Errorf("MarkProcessed failed: %v", err)
				return
			}
			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	ok, err := s.IsProcessed(ctx, "tenant-a", "evt-1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !ok {
		t.Error("IsProcessed = false, want true")
	}
}

func TestReplayScopingAndPurge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	recs := []*replay.Record{
		{TenantID: "tenant-a", EventID: "evt-1", ProcessedAt: time.Now().UTC()},
		{TenantID: "tenant-a", EventID: "evt-2", ProcessedAt: time.Now().UTC().Add(time.Second)},
		{TenantID: "tenant-b", EventID: "evt-1", ProcessedAt: time.Now().UTC()},
	}
	for _, rec := range recs {
		if _, err := s.MarkProcessed(ctx, rec); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
	}

	listed, err := s.ListReplay(ctx, replay.ListOpts{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("ListReplay failed: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("len(listed) = %d, want 2", len(listed))
	}

	if err := s.DeleteReplay(ctx, "tenant-a", "evt-1"); err != nil {
		t.Fatalf("DeleteReplay failed: %v", err)
	}
	if _, err := s.GetReplay(ctx, "tenant-a", "evt-1"); !errors.Is(err, sentinel.ErrReplayNotFound) {
		t.Errorf("GetReplay after delete = %v, want ErrReplayNotFound", err)
	}

	n, err := s.PurgeReplay(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("PurgeReplay failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	ok, err := s.IsProcessed(ctx, "tenant-b", "evt-1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !ok {
		t.Error("tenant-b record removed by tenant-a purge")
	}
}

func TestTenantConfigRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if _, err := s.GetTenantConfig(ctx, "tenant-a"); !errors.Is(err, sentinel.ErrTenantNotFound) {
		t.Errorf("GetTenantConfig unknown = %v, want ErrTenantNotFound", err)
	}

	cfg := tenant.Defaults("tenant-a")
	cfg.ConcurrencyLimit = 8
	if err := s.SaveTenantConfig(ctx, &cfg); err != nil {
		t.Fatalf("SaveTenantConfig failed: %v", err)
	}

	got, err := s.GetTenantConfig(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("GetTenantConfig failed: %v", err)
	}
	if got.ConcurrencyLimit != 8 {
		t.Errorf("ConcurrencyLimit = %d, want 8", got.ConcurrencyLimit)
	}

	cfgB := tenant.Defaults("tenant-b")
	if err := s.SaveTenantConfig(ctx, &cfgB); err != nil {
		t.Fatalf("SaveTenantConfig failed: %v", err)
	}
	all, err := s.ListTenantConfigs(ctx)
	if err != nil {
		t.Fatalf("ListTenantConfigs failed: %v", err)
	}
	if len(all) != 2 || all[0].TenantID != "tenant-a" || all[1].TenantID != "tenant-b" {
		t.Errorf("ListTenantConfigs = %v, want tenant-a then tenant-b", all)
	}
}

// Package memory provides an in-memory store for development and
// testing. All state is process-local and lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/breaker"
	"github.com/xraph/sentinel/dlq"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/replay"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/tenant"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ breaker.Store = (*Store)(nil)
	_ dlq.Store     = (*Store)(nil)
	_ replay.Store  = (*Store)(nil)
	_ tenant.Store  = (*Store)(nil)
	_ store.Store   = (*Store)(nil)
)

type replayKey struct {
	tenantID string
	eventID  string
}

// Store is an in-memory implementation of store.Store. Safe for
// concurrent use. Values are copied on the way in and out so callers
// never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	breakers map[string]*breaker.TenantState
	dlqs     map[id.DLQID]*dlq.Message
	dlqOrder []id.DLQID
	replays  map[replayKey]*replay.Record
	tenants  map[string]*tenant.Config
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		breakers: make(map[string]*breaker.TenantState),
		dlqs:     make(map[id.DLQID]*dlq.Message),
		replays:  make(map[replayKey]*replay.Record),
		tenants:  make(map[string]*tenant.Config),
	}
}

// Migrate is a no-op for the memory backend.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sentinel.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data is retained for inspection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ── breaker.Store ───────────────────────────────────────────────

// GetBreaker returns the persisted breaker state for a tenant.
func (s *Store) GetBreaker(_ context.Context, tenantID string) (*breaker.TenantState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.breakers[tenantID]
	if !ok {
		return nil, sentinel.ErrBreakerNotFound
	}
	cp := *st
	return &cp, nil
}

// SaveBreaker upserts a tenant's breaker state.
func (s *Store) SaveBreaker(_ context.Context, st *breaker.TenantState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.breakers[st.TenantID] = &cp
	return nil
}

// ── dlq.Store ───────────────────────────────────────────────────

// PushDLQ stores a dead-letter message.
func (s *Store) PushDLQ(_ context.Context, msg *dlq.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.dlqs[msg.ID] = &cp
	s.dlqOrder = append(s.dlqOrder, msg.ID)
	return nil
}

// GetDLQ returns one dead-letter message by ID.
func (s *Store) GetDLQ(_ context.Context, msgID id.DLQID) (*dlq.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.dlqs[msgID]
	if !ok {
		return nil, sentinel.ErrDLQNotFound
	}
	cp := *msg
	return &cp, nil
}

// ListDLQ returns dead-letter messages newest first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*dlq.Message
	for i := len(s.dlqOrder) - 1; i >= 0; i-- {
		msg, ok := s.dlqs[s.dlqOrder[i]]
		if !ok {
			continue
		}
		if opts.TenantID != "" && msg.TenantID != opts.TenantID {
			continue
		}
		matched = append(matched, msg)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*dlq.Message, len(matched))
	for i, msg := range matched {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

// UpdateDLQ replaces a stored dead-letter message.
func (s *Store) UpdateDLQ(_ context.Context, msg *dlq.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dlqs[msg.ID]; !ok {
		return sentinel.ErrDLQNotFound
	}
	cp := *msg
	s.dlqs[msg.ID] = &cp
	return nil
}

// DeleteDLQ removes one dead-letter message.
func (s *Store) DeleteDLQ(_ context.Context, msgID id.DLQID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dlqs[msgID]; !ok {
		return sentinel.ErrDLQNotFound
	}
	delete(s.dlqs, msgID)
	s.dropFromOrder(msgID)
	return nil
}

// PurgeExpiredDLQ removes every message whose retention elapsed at now.
func (s *Store) PurgeExpiredDLQ(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for msgID, msg := range s.dlqs {
		if msg.Expired(now) {
			delete(s.dlqs, msgID)
			s.dropFromOrder(msgID)
			n++
		}
	}
	return n, nil
}

// CountDLQ counts retained messages, optionally for one tenant.
func (s *Store) CountDLQ(_ context.Context, tenantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, msg := range s.dlqs {
		if tenantID == "" || msg.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// dropFromOrder must be called with s.mu held for writing.
func (s *Store) dropFromOrder(msgID id.DLQID) {
	for i, existing := range s.dlqOrder {
		if existing == msgID {
			s.dlqOrder = append(s.dlqOrder[:i], s.dlqOrder[i+1:]...)
			return
		}
	}
}

// ── replay.Store ────────────────────────────────────────────────

// MarkProcessed inserts the record unless one already exists for the
// (tenant, event) pair. The write and the existence check happen under
// one lock, so exactly one concurrent caller observes true.
func (s *Store) MarkProcessed(_ context.Context, rec *replay.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := replayKey{tenantID: rec.TenantID, eventID: rec.EventID}
	if _, exists := s.replays[k]; exists {
		return false, nil
	}
	cp := *rec
	s.replays[k] = &cp
	return true, nil
}

// IsProcessed reports whether the event was recorded for the tenant.
func (s *Store) IsProcessed(_ context.Context, tenantID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.replays[replayKey{tenantID: tenantID, eventID: eventID}]
	return ok, nil
}

// GetReplay returns one replay record.
func (s *Store) GetReplay(_ context.Context, tenantID, eventID string) (*replay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.replays[replayKey{tenantID: tenantID, eventID: eventID}]
	if !ok {
		return nil, sentinel.ErrReplayNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListReplay returns replay records, newest first.
func (s *Store) ListReplay(_ context.Context, opts replay.ListOpts) ([]*replay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*replay.Record
	for _, rec := range s.replays {
		if opts.TenantID != "" && rec.TenantID != opts.TenantID {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ProcessedAt.After(matched[j].ProcessedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*replay.Record, len(matched))
	for i, rec := range matched {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// DeleteReplay removes one replay record.
func (s *Store) DeleteReplay(_ context.Context, tenantID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := replayKey{tenantID: tenantID, eventID: eventID}
	if _, ok := s.replays[k]; !ok {
		return sentinel.ErrReplayNotFound
	}
	delete(s.replays, k)
	return nil
}

// PurgeReplay removes every replay record for a tenant.
func (s *Store) PurgeReplay(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.replays {
		if k.tenantID == tenantID {
			delete(s.replays, k)
			n++
		}
	}
	return n, nil
}

// ── tenant.Store ────────────────────────────────────────────────

// GetTenantConfig returns a tenant's stored configuration.
func (s *Store) GetTenantConfig(_ context.Context, tenantID string) (*tenant.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrTenantNotFound
	}
	cp := *cfg
	return &cp, nil
}

// SaveTenantConfig upserts a tenant's configuration.
func (s *Store) SaveTenantConfig(_ context.Context, cfg *tenant.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	s.tenants[cfg.TenantID] = &cp
	return nil
}

// ListTenantConfigs returns every stored tenant configuration sorted by
// tenant ID.
func (s *Store) ListTenantConfigs(_ context.Context) ([]*tenant.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tenant.Config, 0, len(s.tenants))
	for _, cfg := range s.tenants {
		cp := *cfg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

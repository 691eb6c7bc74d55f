// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"
	"time"

	"deskaudit/internal/domain"
)

// === Audit Log Repository Mock ===

// MockAuditLogRepo implements domain.AuditLogRepository for testing. With no
// function fields set it behaves as a thread-safe in-memory chain store with
// compare-and-swap head semantics, so tests can exercise real append races.
type MockAuditLogRepo struct {
	GetChainHeadFn func(ctx context.Context) (string, error)
	AppendEntryFn  func(ctx context.Context, e *domain.AuditLogEntry, expectedHead string) error
	GetByIDFn      func(ctx context.Context, id string) (*domain.AuditLogEntry, error)
	ListRangeFn    func(ctx context.Context, start, end *time.Time) ([]domain.AuditLogEntry, error)
	ListFn         func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error)
	ListAfterSeqFn func(ctx context.Context, filter domain.AuditFilter, afterSeq int64, limit int) ([]domain.AuditLogEntry, error)

	mu      sync.Mutex
	head    string
	Entries []*domain.AuditLogEntry // collected entries for assertions
}

// GetChainHead implements the interface method for testing.
func (m *MockAuditLogRepo) GetChainHead(ctx context.Context) (string, error) {
	if m.GetChainHeadFn != nil {
		return m.GetChainHeadFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.head == "" {
		return domain.GenesisHash, nil
	}
	return m.head, nil
}

// AppendEntry implements the interface method for testing.
func (m *MockAuditLogRepo) AppendEntry(ctx context.Context, e *domain.AuditLogEntry, expectedHead string) error {
	if m.AppendEntryFn != nil {
		if err := m.AppendEntryFn(ctx, e, expectedHead); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	head := m.head
	if head == "" {
		head = domain.GenesisHash
	}
	if expectedHead != head {
		return domain.ErrChainConflict
	}
	e.Seq = int64(len(m.Entries) + 1)
	m.head = e.Hash
	m.Entries = append(m.Entries, e)
	return nil
}

// GetByID implements the interface method for testing.
func (m *MockAuditLogRepo) GetByID(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound("audit entry %q not found", id)
}

// ListRange implements the interface method for testing.
func (m *MockAuditLogRepo) ListRange(ctx context.Context, start, end *time.Time) ([]domain.AuditLogEntry, error) {
	if m.ListRangeFn != nil {
		return m.ListRangeFn(ctx, start, end)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range m.Entries {
		if start != nil && e.Timestamp.Before(*start) {
			continue
		}
		if end != nil && e.Timestamp.After(*end) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

// List implements the interface method for testing.
func (m *MockAuditLogRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockAuditLogRepo.List")
}

// ListAfterSeq implements the interface method for testing. The default
// reads the in-memory chain in append order, honoring the action filter
// and the seq cursor.
func (m *MockAuditLogRepo) ListAfterSeq(ctx context.Context, filter domain.AuditFilter, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
	if m.ListAfterSeqFn != nil {
		return m.ListAfterSeqFn(ctx, filter, afterSeq, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range m.Entries {
		if e.Seq <= afterSeq {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ChainEntries returns a copy of the collected entries in append order.
func (m *MockAuditLogRepo) ChainEntries() []domain.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditLogEntry, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = *e
	}
	return out
}

// LastEntry returns the last collected entry, or nil if none.
func (m *MockAuditLogRepo) LastEntry() *domain.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Entries) == 0 {
		return nil
	}
	return m.Entries[len(m.Entries)-1]
}

// HasAction returns true if any collected entry has the given action.
func (m *MockAuditLogRepo) HasAction(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

var _ domain.AuditLogRepository = (*MockAuditLogRepo)(nil)

// === DLQ Repository Mock ===

// MockDLQRepo implements domain.DLQRepository for testing. The default
// behavior is an in-memory store so retry-loop tests need no setup.
type MockDLQRepo struct {
	InsertFn            func(ctx context.Context, e *domain.DLQEntry) error
	ListRetryableFn     func(ctx context.Context, maxRetries int) ([]domain.DLQEntry, error)
	ListUnresolvedFn    func(ctx context.Context, page domain.PageRequest) ([]domain.DLQEntry, int64, error)
	MarkResolvedBatchFn func(ctx context.Context, ids []string) error
	RecordFailureFn     func(ctx context.Context, id string, lastError string, at time.Time) error

	mu      sync.Mutex
	Entries []*domain.DLQEntry // collected entries for assertions
}

// Insert implements the interface method for testing.
func (m *MockDLQRepo) Insert(ctx context.Context, e *domain.DLQEntry) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

// ListRetryable implements the interface method for testing.
func (m *MockDLQRepo) ListRetryable(ctx context.Context, maxRetries int) ([]domain.DLQEntry, error) {
	if m.ListRetryableFn != nil {
		return m.ListRetryableFn(ctx, maxRetries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DLQEntry
	for _, e := range m.Entries {
		if !e.Resolved && e.RetryCount < maxRetries {
			out = append(out, *e)
		}
	}
	return out, nil
}

// ListUnresolved implements the interface method for testing.
func (m *MockDLQRepo) ListUnresolved(ctx context.Context, page domain.PageRequest) ([]domain.DLQEntry, int64, error) {
	if m.ListUnresolvedFn != nil {
		return m.ListUnresolvedFn(ctx, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DLQEntry
	for _, e := range m.Entries {
		if !e.Resolved {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

// MarkResolvedBatch implements the interface method for testing.
func (m *MockDLQRepo) MarkResolvedBatch(ctx context.Context, ids []string) error {
	if m.MarkResolvedBatchFn != nil {
		return m.MarkResolvedBatchFn(ctx, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, e := range m.Entries {
			if e.ID == id {
				e.Resolved = true
			}
		}
	}
	return nil
}

// RecordFailure implements the interface method for testing.
func (m *MockDLQRepo) RecordFailure(ctx context.Context, id string, lastError string, at time.Time) error {
	if m.RecordFailureFn != nil {
		return m.RecordFailureFn(ctx, id, lastError, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.ID == id {
			e.RetryCount++
			e.LastError = lastError
			t := at
			e.LastRetryAt = &t
		}
	}
	return nil
}

// Unresolved returns the unresolved entry count.
func (m *MockDLQRepo) Unresolved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Entries {
		if !e.Resolved {
			n++
		}
	}
	return n
}

var _ domain.DLQRepository = (*MockDLQRepo)(nil)

// === Verification Repository Mock ===

// MockVerificationRepo implements domain.VerificationRepository for testing.
type MockVerificationRepo struct {
	InsertFn func(ctx context.Context, r *domain.ChainVerificationResult) error
	ListFn   func(ctx context.Context, page domain.PageRequest) ([]domain.ChainVerificationResult, int64, error)

	mu      sync.Mutex
	Results []*domain.ChainVerificationResult // collected results for assertions
}

// Insert implements the interface method for testing.
func (m *MockVerificationRepo) Insert(ctx context.Context, r *domain.ChainVerificationResult) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results = append(m.Results, r)
	return nil
}

// List implements the interface method for testing.
func (m *MockVerificationRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.ChainVerificationResult, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChainVerificationResult, len(m.Results))
	for i, r := range m.Results {
		out[i] = *r
	}
	return out, int64(len(out)), nil
}

var _ domain.VerificationRepository = (*MockVerificationRepo)(nil)

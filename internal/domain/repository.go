package domain

import (
	"context"
	"time"
)

// AuditLogRepository is the append-capable store contract for chain entries.
// The store guarantees primary-key (insertion) ordering; the core guarantees
// entries are never updated or deleted.
type AuditLogRepository interface {
	// GetChainHead returns the hash of the most recently appended entry,
	// or GenesisHash when the chain is empty.
	GetChainHead(ctx context.Context) (string, error)
	// AppendEntry inserts the entry and advances the chain head in one
	// atomic step, conditional on the head still being expectedHead.
	// Returns ErrChainConflict when the head moved.
	AppendEntry(ctx context.Context, e *AuditLogEntry, expectedHead string) error
	GetByID(ctx context.Context, id string) (*AuditLogEntry, error)
	// ListRange returns entries with Timestamp in [start, end], in
	// insertion order. Nil bounds are open-ended.
	ListRange(ctx context.Context, start, end *time.Time) ([]AuditLogEntry, error)
	List(ctx context.Context, filter AuditFilter) ([]AuditLogEntry, int64, error)
	// ListAfterSeq returns up to limit entries matching the filter with
	// Seq greater than afterSeq, oldest first. The filter's Page field is
	// ignored; callers cursor on the last returned Seq, which stays
	// stable under concurrent appends where offset pagination does not.
	ListAfterSeq(ctx context.Context, filter AuditFilter, afterSeq int64, limit int) ([]AuditLogEntry, error)
}

// DLQRepository stores audit events that failed to persist.
type DLQRepository interface {
	Insert(ctx context.Context, e *DLQEntry) error
	// ListRetryable returns unresolved entries with RetryCount < maxRetries.
	ListRetryable(ctx context.Context, maxRetries int) ([]DLQEntry, error)
	ListUnresolved(ctx context.Context, page PageRequest) ([]DLQEntry, int64, error)
	// MarkResolvedBatch flips the resolved flag for all given ids.
	MarkResolvedBatch(ctx context.Context, ids []string) error
	// RecordFailure increments the retry count and stores the latest error.
	RecordFailure(ctx context.Context, id string, lastError string, at time.Time) error
}

// VerificationRepository stores chain verification results.
type VerificationRepository interface {
	Insert(ctx context.Context, r *ChainVerificationResult) error
	List(ctx context.Context, page PageRequest) ([]ChainVerificationResult, int64, error)
}

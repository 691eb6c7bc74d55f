package audit

import (
	"context"

	"deskaudit/internal/domain"
)

// QueryService provides the admin-facing read surface over the audit
// store. All operations require admin privileges — audit entries describe
// every user's actions.
type QueryService struct {
	entries       domain.AuditLogRepository
	dlq           domain.DLQRepository
	verifications domain.VerificationRepository
}

// NewQueryService creates a QueryService.
func NewQueryService(entries domain.AuditLogRepository, dlq domain.DLQRepository, verifications domain.VerificationRepository) *QueryService {
	return &QueryService{entries: entries, dlq: dlq, verifications: verifications}
}

// List returns a filtered, paginated list of audit log entries.
func (s *QueryService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	return s.entries.List(ctx, filter)
}

// Get returns a single audit log entry by id.
func (s *QueryService) Get(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.entries.GetByID(ctx, id)
}

// ListVerifications returns past chain verification results, newest first.
func (s *QueryService) ListVerifications(ctx context.Context, page domain.PageRequest) ([]domain.ChainVerificationResult, int64, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	return s.verifications.List(ctx, page)
}

// ListDLQ returns unresolved dead-letter entries, newest first.
func (s *QueryService) ListDLQ(ctx context.Context, page domain.PageRequest) ([]domain.DLQEntry, int64, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	return s.dlq.ListUnresolved(ctx, page)
}

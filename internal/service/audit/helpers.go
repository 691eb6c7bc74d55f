package audit

import (
	"context"

	"deskaudit/internal/domain"
)

// requireAdmin checks that the caller in context has admin privileges.
// Returns AccessDeniedError if not authenticated or not admin.
func requireAdmin(ctx context.Context) error {
	a, ok := domain.ActorFromContext(ctx)
	if !ok {
		return domain.ErrAccessDenied("authentication required")
	}
	if !a.IsAdmin {
		return domain.ErrAccessDenied("admin privileges required")
	}
	return nil
}

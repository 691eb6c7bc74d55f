package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/domain"
	"deskaudit/internal/testutil"
)

func TestQueryService_List(t *testing.T) {
	t.Run("happy_path", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{
			ListFn: func(_ context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error) {
				assert.Equal(t, "ticket.created", *filter.Action)
				return []domain.AuditLogEntry{{ID: "e-1"}, {ID: "e-2"}}, 2, nil
			},
		}
		svc := NewQueryService(repo, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		action := "ticket.created"
		entries, total, err := svc.List(adminCtx(), domain.AuditFilter{Action: &action})

		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Equal(t, int64(2), total)
	})

	t.Run("non_admin_denied", func(t *testing.T) {
		svc := NewQueryService(&testutil.MockAuditLogRepo{}, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		ctx := domain.WithNamedActor(context.Background(), "alice@example.com", "u-1", domain.ActorTypeUser)
		_, _, err := svc.List(ctx, domain.AuditFilter{})

		var denied *domain.AccessDeniedError
		require.Error(t, err)
		assert.True(t, errors.As(err, &denied))
	})

	t.Run("unauthenticated_denied", func(t *testing.T) {
		svc := NewQueryService(&testutil.MockAuditLogRepo{}, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		_, _, err := svc.List(context.Background(), domain.AuditFilter{})

		var denied *domain.AccessDeniedError
		require.Error(t, err)
		assert.True(t, errors.As(err, &denied))
	})
}

func TestQueryService_Get(t *testing.T) {
	t.Run("happy_path", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{
			GetByIDFn: func(_ context.Context, id string) (*domain.AuditLogEntry, error) {
				return &domain.AuditLogEntry{ID: id}, nil
			},
		}
		svc := NewQueryService(repo, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		entry, err := svc.Get(adminCtx(), "e-1")

		require.NoError(t, err)
		assert.Equal(t, "e-1", entry.ID)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{
			GetByIDFn: func(_ context.Context, id string) (*domain.AuditLogEntry, error) {
				return nil, domain.ErrNotFound("audit entry %q not found", id)
			},
		}
		svc := NewQueryService(repo, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		_, err := svc.Get(adminCtx(), "nope")

		var notFound *domain.NotFoundError
		require.Error(t, err)
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("non_admin_denied", func(t *testing.T) {
		svc := NewQueryService(&testutil.MockAuditLogRepo{}, &testutil.MockDLQRepo{}, &testutil.MockVerificationRepo{})

		_, err := svc.Get(context.Background(), "e-1")

		assert.Error(t, err)
	})
}

func TestQueryService_ListVerifications(t *testing.T) {
	verifications := &testutil.MockVerificationRepo{}
	verifications.Results = append(verifications.Results, &domain.ChainVerificationResult{ID: "v-1", Status: domain.ChainValid})
	svc := NewQueryService(&testutil.MockAuditLogRepo{}, &testutil.MockDLQRepo{}, verifications)

	results, total, err := svc.ListVerifications(adminCtx(), domain.PageRequest{})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "v-1", results[0].ID)

	_, _, err = svc.ListVerifications(context.Background(), domain.PageRequest{})
	assert.Error(t, err, "admin only")
}

func TestQueryService_ListDLQ(t *testing.T) {
	dlq := &testutil.MockDLQRepo{}
	dlq.Entries = append(dlq.Entries,
		&domain.DLQEntry{ID: "d-1"},
		&domain.DLQEntry{ID: "d-2", Resolved: true},
	)
	svc := NewQueryService(&testutil.MockAuditLogRepo{}, dlq, &testutil.MockVerificationRepo{})

	entries, total, err := svc.ListDLQ(adminCtx(), domain.PageRequest{})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "resolved entries are excluded")
	assert.Equal(t, "d-1", entries[0].ID)

	_, _, err = svc.ListDLQ(context.Background(), domain.PageRequest{})
	assert.Error(t, err, "admin only")
}

package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/domain"
	"deskaudit/internal/testutil"
)

// seedChain appends n entries through a real logger so the stored chain is
// genuinely valid.
func seedChain(t *testing.T, repo *testutil.MockAuditLogRepo, n int) {
	t.Helper()
	logger := newTestLogger(repo, &testutil.MockDLQRepo{})
	for i := 0; i < n; i++ {
		require.NoError(t, logger.LogEvent(context.Background(), &domain.AuditEvent{
			Action:     domain.ActionTicketUpdated,
			EntityType: "ticket",
			EntityID:   "t-1",
		}))
	}
}

func newTestVerifier(repo *testutil.MockAuditLogRepo, verifications *testutil.MockVerificationRepo, auditLog *testutil.MockAuditLogRepo) *Verifier {
	logger := newTestLogger(auditLog, &testutil.MockDLQRepo{})
	return NewVerifier(repo, verifications, logger, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerifier_VerifyRange(t *testing.T) {
	t.Run("valid_range", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 5)
		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		start := time.Now().UTC().Add(-time.Hour)
		end := time.Now().UTC().Add(time.Hour)
		result, err := v.VerifyRange(context.Background(), start, end)

		require.NoError(t, err)
		assert.Equal(t, domain.ChainValid, result.Status)
		assert.Equal(t, 5, result.TotalEntries)
		assert.Equal(t, 5, result.VerifiedEntries)
		require.NotNil(t, result.RangeStart)
		assert.Equal(t, start, *result.RangeStart)
		assert.Len(t, verifications.Results, 1, "result is persisted")
	})

	t.Run("empty_range_is_partial", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		result, err := v.VerifyRange(context.Background(), time.Now().Add(-time.Hour), time.Now())

		require.NoError(t, err)
		assert.Equal(t, domain.ChainPartial, result.Status)
		assert.Zero(t, result.TotalEntries)
	})

	t.Run("tampered_entry_detected", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 4)
		repo.Entries[2].ActorEmail = "intruder@example.com" // retroactive edit

		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		result, err := v.VerifyRange(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

		require.NoError(t, err)
		assert.Equal(t, domain.ChainInvalid, result.Status)
		assert.Equal(t, 2, result.VerifiedEntries)
		assert.Equal(t, repo.Entries[2].ID, result.FirstFailureID)
		assert.NotEmpty(t, result.ExpectedHash)
	})
}

func TestVerifier_VerifyEntireChain(t *testing.T) {
	t.Run("anchored_at_genesis", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 3)
		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		result, err := v.VerifyEntireChain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, domain.ChainValid, result.Status)
		assert.Equal(t, 3, result.VerifiedEntries)
		assert.Nil(t, result.RangeStart, "full scans have no range")
	})

	t.Run("first_entry_must_link_to_genesis", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 3)
		repo.Entries[0].PrevHash = "forged"

		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		result, err := v.VerifyEntireChain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, domain.ChainInvalid, result.Status)
		assert.Zero(t, result.VerifiedEntries)
	})
}

func TestVerifier_RunScheduledVerification(t *testing.T) {
	t.Run("clean_chain_logs_verified_event", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 3)
		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		err := v.RunScheduledVerification(context.Background())

		require.NoError(t, err)
		assert.True(t, repo.HasAction(domain.ActionChainVerified))
		assert.False(t, repo.HasAction(domain.ActionChainWarning))

		// The outcome event is attributed to the system actor at level 0.
		outcome := repo.LastEntry()
		assert.Equal(t, domain.SystemActor.ID, outcome.ActorID)
		assert.Equal(t, domain.RedactionNone, outcome.RedactionLevel)
		assert.Equal(t, "audit_chain", outcome.EntityType)
	})

	t.Run("broken_chain_logs_warning_with_failure_details", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{}
		seedChain(t, repo, 3)
		tamperedID := repo.Entries[1].ID
		repo.Entries[1].Action = "forged.action"

		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, repo)

		err := v.RunScheduledVerification(context.Background())

		require.NoError(t, err)
		assert.True(t, repo.HasAction(domain.ActionChainWarning))

		outcome := repo.LastEntry()
		assert.Equal(t, domain.ActionChainWarning, outcome.Action)
		assert.Equal(t, tamperedID, outcome.Metadata["firstFailureId"])
		assert.Equal(t, string(domain.ChainInvalid), outcome.Metadata["status"])
		assert.NotEmpty(t, outcome.Metadata["expectedHash"])
	})

	t.Run("verification_failure_surfaces", func(t *testing.T) {
		repo := &testutil.MockAuditLogRepo{
			ListRangeFn: func(_ context.Context, _, _ *time.Time) ([]domain.AuditLogEntry, error) {
				return nil, errStorage
			},
		}
		verifications := &testutil.MockVerificationRepo{}
		v := newTestVerifier(repo, verifications, &testutil.MockAuditLogRepo{})

		err := v.RunScheduledVerification(context.Background())

		require.ErrorIs(t, err, errStorage)
		assert.Empty(t, verifications.Results)
	})
}

package audit

import (
	"context"
	"log/slog"
	"time"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
)

// Verifier re-walks stored entries, recomputes their hashes, and reports
// the first point of divergence. Verification is read-only, so it is safe
// to run concurrently with writers.
type Verifier struct {
	entries       domain.AuditLogRepository
	verifications domain.VerificationRepository
	logger        *Logger
	log           *slog.Logger
	window        time.Duration
	now           func() time.Time
}

// NewVerifier creates a chain Verifier. window is the range covered by a
// scheduled run (default one hour).
func NewVerifier(entries domain.AuditLogRepository, verifications domain.VerificationRepository, logger *Logger, window time.Duration, log *slog.Logger) *Verifier {
	if window <= 0 {
		window = time.Hour
	}
	return &Verifier{
		entries:       entries,
		verifications: verifications,
		logger:        logger,
		log:           log,
		window:        window,
		now:           time.Now,
	}
}

// VerifyRange verifies all entries with timestamps in [start, end],
// persists the result record, and returns it.
//
// Ranges are verified without a genesis anchor: the first in-range entry's
// linkage to its out-of-range predecessor is still covered, because every
// entry's hash is recomputed over its stored prevHash — altering that
// linkage breaks recomputation.
func (v *Verifier) VerifyRange(ctx context.Context, start, end time.Time) (*domain.ChainVerificationResult, error) {
	entries, err := v.entries.ListRange(ctx, &start, &end)
	if err != nil {
		return nil, err
	}

	result := hashchain.VerifyChain(entries, "")
	s, e := start, end
	result.RangeStart, result.RangeEnd = &s, &e

	if err := v.verifications.Insert(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyEntireChain scans the full table from genesis. Expensive — used
// on demand only, never on a schedule.
func (v *Verifier) VerifyEntireChain(ctx context.Context) (*domain.ChainVerificationResult, error) {
	entries, err := v.entries.ListRange(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	result := hashchain.VerifyChain(entries, domain.GenesisHash)

	if err := v.verifications.Insert(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunScheduledVerification verifies the most recent window and reports the
// outcome back through the audit log itself: audit.chain.verified on
// success, a high-severity audit.chain.warning on a break. Both are logged
// at redaction level 0 — verification failures must never be redacted,
// since they indicate potential tampering.
func (v *Verifier) RunScheduledVerification(ctx context.Context) error {
	ctx = domain.WithSystemActor(ctx)
	end := v.now().UTC()
	start := end.Add(-v.window)

	result, err := v.VerifyRange(ctx, start, end)
	if err != nil {
		v.log.Error("scheduled chain verification failed to run", "error", err)
		return err
	}

	level := domain.RedactionNone
	event := &domain.AuditEvent{
		EntityType:     "audit_chain",
		EntityID:       "primary",
		RedactionLevel: &level,
		Metadata: map[string]any{
			"verificationId":  result.ID,
			"rangeStart":      start.Format(hashchain.TimestampFormat),
			"rangeEnd":        end.Format(hashchain.TimestampFormat),
			"totalEntries":    result.TotalEntries,
			"verifiedEntries": result.VerifiedEntries,
			"status":          string(result.Status),
		},
	}

	switch result.Status {
	case domain.ChainInvalid:
		event.Action = domain.ActionChainWarning
		event.Metadata["firstFailureId"] = result.FirstFailureID
		event.Metadata["expectedHash"] = result.ExpectedHash
		event.Metadata["actualHash"] = result.ActualHash
		if result.FirstFailureTS != nil {
			event.Metadata["firstFailureTs"] = result.FirstFailureTS.Format(hashchain.TimestampFormat)
		}
		v.log.Error("audit chain break detected",
			"first_failure_id", result.FirstFailureID,
			"expected_hash", result.ExpectedHash,
			"actual_hash", result.ActualHash,
			"verified_entries", result.VerifiedEntries,
			"total_entries", result.TotalEntries)
	default:
		event.Action = domain.ActionChainVerified
		v.log.Info("audit chain verified",
			"status", string(result.Status),
			"total_entries", result.TotalEntries)
	}

	return v.logger.LogEvent(ctx, event)
}

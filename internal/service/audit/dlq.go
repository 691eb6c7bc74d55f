package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"deskaudit/internal/domain"
)

// DefaultMaxRetries is the retry budget applied when a caller passes 0.
const DefaultMaxRetries = 3

// RetryStats summarizes one DLQ retry pass.
type RetryStats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DLQWorker replays parked audit events through the logger with a bounded
// retry budget. Entries that exhaust the budget stay unresolved for manual
// operator intervention — a deliberate fail-stop, not silent loss.
type DLQWorker struct {
	dlq    domain.DLQRepository
	logger *Logger
	log    *slog.Logger
	now    func() time.Time
}

// NewDLQWorker creates a DLQWorker.
func NewDLQWorker(dlq domain.DLQRepository, logger *Logger, log *slog.Logger) *DLQWorker {
	return &DLQWorker{dlq: dlq, logger: logger, log: log, now: time.Now}
}

// RetryDLQEvents loads unresolved entries with fewer than maxRetries
// attempts and replays each through the logger. Successes are resolved in
// one batch; failures are recorded individually since their outcomes
// differ. Returns the pass statistics.
func (w *DLQWorker) RetryDLQEvents(ctx context.Context, maxRetries int) (*RetryStats, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	ctx = domain.WithSystemActor(ctx)

	entries, err := w.dlq.ListRetryable(ctx, maxRetries)
	if err != nil {
		return nil, err
	}

	stats := &RetryStats{Attempted: len(entries)}
	var resolved []string

	for _, entry := range entries {
		if err := w.replayOne(ctx, &entry); err != nil {
			stats.Failed++
			if failErr := w.dlq.RecordFailure(ctx, entry.ID, err.Error(), w.now().UTC()); failErr != nil {
				w.log.Error("record DLQ failure", "dlq_id", entry.ID, "error", failErr)
			}
			if entry.RetryCount+1 >= maxRetries {
				w.log.Warn("DLQ entry exhausted retries, manual intervention required",
					"dlq_id", entry.ID, "retry_count", entry.RetryCount+1, "error", err)
			}
			continue
		}
		stats.Succeeded++
		resolved = append(resolved, entry.ID)
	}

	if err := w.dlq.MarkResolvedBatch(ctx, resolved); err != nil {
		return stats, err
	}

	if stats.Attempted > 0 {
		w.log.Info("DLQ retry pass complete",
			"attempted", stats.Attempted, "succeeded", stats.Succeeded, "failed", stats.Failed)
	}

	// The summary is only worth writing when the store is accepting
	// appends again; recording it during a fully failed pass would just
	// park the summary itself.
	if stats.Succeeded > 0 {
		level := domain.RedactionNone
		_ = w.logger.LogEvent(ctx, &domain.AuditEvent{
			Action:         domain.ActionDLQRetried,
			EntityType:     "audit_dlq",
			EntityID:       "primary",
			RedactionLevel: &level,
			Metadata: map[string]any{
				"attempted": stats.Attempted,
				"succeeded": stats.Succeeded,
				"failed":    stats.Failed,
			},
		})
	}
	return stats, nil
}

func (w *DLQWorker) replayOne(ctx context.Context, entry *domain.DLQEntry) error {
	var event domain.AuditEvent
	if err := json.Unmarshal(entry.Payload, &event); err != nil {
		return domain.ErrValidation("unreadable DLQ payload: %v", err)
	}
	return w.logger.Replay(ctx, &event)
}

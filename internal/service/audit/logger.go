// Package audit implements the audit trail core: the logging entry point,
// chain verification, and the dead-letter retry worker.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
	"deskaudit/internal/redact"
)

// maxAppendRetries bounds the optimistic chain-head loop. With the
// single-connection write pool conflicts are rare; five attempts is
// generous.
const maxAppendRetries = 5

// Logger is the single entry point collaborators use to record an action.
// It orchestrates actor resolution, redaction, hashing, and persistence,
// parking events that fail to persist in the DLQ instead of surfacing the
// failure to the caller.
type Logger struct {
	entries      domain.AuditLogRepository
	dlq          domain.DLQRepository
	redactor     *redact.Engine
	defaultLevel domain.RedactionLevel
	log          *slog.Logger
	now          func() time.Time
}

// NewLogger creates an audit Logger. defaultLevel applies to events that
// do not declare their own redaction level.
func NewLogger(entries domain.AuditLogRepository, dlq domain.DLQRepository, redactor *redact.Engine, defaultLevel domain.RedactionLevel, log *slog.Logger) *Logger {
	if !defaultLevel.Valid() {
		defaultLevel = domain.RedactionModerate
	}
	return &Logger{
		entries:      entries,
		dlq:          dlq,
		redactor:     redactor,
		defaultLevel: defaultLevel,
		log:          log,
		now:          time.Now,
	}
}

// LogEvent records an audit event. Audit logging is a secondary effect of
// the caller's business operation: storage failures never propagate — the
// event is parked in the DLQ and a warning is logged out of band. Only
// malformed input (missing entity reference, bad redaction level) returns
// an error.
func (l *Logger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	prepared, err := l.prepare(ctx, event)
	if err != nil {
		return err
	}

	if err := l.append(ctx, prepared); err != nil {
		l.park(ctx, prepared, err)
	}
	return nil
}

// Replay re-runs a prepared event through the append path, returning
// persistence errors to the caller instead of parking them. The DLQ worker
// uses this so a second failure increments the retry count rather than
// duplicating the DLQ entry.
func (l *Logger) Replay(ctx context.Context, event *domain.AuditEvent) error {
	prepared, err := l.prepare(ctx, event)
	if err != nil {
		return err
	}
	return l.append(ctx, prepared)
}

// prepare validates the event and produces the normalized form that feeds
// the hash: UTC timestamp, resolved actor, correlation ids, redacted and
// JSON-normalized payloads.
func (l *Logger) prepare(ctx context.Context, event *domain.AuditEvent) (*domain.AuditEvent, error) {
	if event == nil {
		return nil, domain.ErrValidation("audit event is required")
	}
	if event.Action == "" {
		return nil, domain.ErrValidation("audit event action is required")
	}
	if event.EntityType == "" || event.EntityID == "" {
		return nil, domain.ErrValidation("audit event entityType and entityId are required")
	}
	if event.RedactionLevel != nil && !event.RedactionLevel.Valid() {
		return nil, domain.ErrValidation("invalid redaction level %d", *event.RedactionLevel)
	}

	ev := *event

	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	if ev.ActorEmail == "" && ev.ActorID == "" {
		actor := domain.ResolveActor(ctx)
		ev.ActorID = actor.ID
		ev.ActorEmail = actor.Email
		ev.ActorType = actor.Type
	} else if ev.ActorType == "" {
		ev.ActorType = domain.ActorTypeUser
	}

	if corr, ok := domain.CorrelationFromContext(ctx); ok {
		if ev.RequestID == "" {
			ev.RequestID = corr.RequestID
		}
		if ev.CorrelationID == "" {
			ev.CorrelationID = corr.CorrelationID
		}
	}
	if ev.RequestID == "" {
		ev.RequestID = domain.NewID()
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = ev.RequestID
	}

	level := l.defaultLevel
	if ev.RedactionLevel != nil {
		level = *ev.RedactionLevel
	}
	ev.RedactionLevel = &level

	var err error
	if ev.PrevValues, err = l.sanitize(ev.PrevValues, level); err != nil {
		return nil, err
	}
	if ev.NewValues, err = l.sanitize(ev.NewValues, level); err != nil {
		return nil, err
	}
	if ev.Metadata, err = l.sanitize(ev.Metadata, level); err != nil {
		return nil, err
	}

	return &ev, nil
}

// sanitize redacts a payload and round-trips it through JSON so the value
// shapes that get hashed are exactly the shapes read back from storage
// during verification.
func (l *Logger) sanitize(m map[string]any, level domain.RedactionLevel) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	redacted := l.redactor.RedactMap(m, level)
	b, err := json.Marshal(redacted)
	if err != nil {
		return nil, domain.ErrValidation("payload is not serializable: %v", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(b, &normalized); err != nil {
		return nil, domain.ErrValidation("payload is not serializable: %v", err)
	}
	return normalized, nil
}

// append runs the optimistic compare-and-swap loop over the chain head:
// read the head, hash the entry against it, and insert conditionally. A
// concurrent writer moving the head yields ErrChainConflict and a retry
// with the refreshed head, so the chain stays linear under concurrent
// loggers.
func (l *Logger) append(ctx context.Context, ev *domain.AuditEvent) error {
	entry := entryFromEvent(ev)

	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		head, err := l.entries.GetChainHead(ctx)
		if err != nil {
			return err
		}

		entry.PrevHash = head
		entry.Hash, err = hashchain.ComputeHash(entry, head)
		if err != nil {
			return err
		}

		err = l.entries.AppendEntry(ctx, entry, head)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrChainConflict) {
			return err
		}
	}
	return fmt.Errorf("append entry %s: %w after %d attempts", entry.ID, domain.ErrChainConflict, maxAppendRetries)
}

// park serializes a failed event into the DLQ. If even that fails, the
// event is logged in full as a final fallback so it is never silently lost.
func (l *Logger) park(ctx context.Context, ev *domain.AuditEvent, cause error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		l.log.Error("audit event lost: unserializable and unpersistable",
			"action", ev.Action, "entity_type", ev.EntityType, "entity_id", ev.EntityID,
			"cause", cause, "error", err)
		return
	}

	dlqEntry := &domain.DLQEntry{
		Payload:   payload,
		Reason:    cause.Error(),
		CreatedAt: l.now().UTC(),
	}
	if err := l.dlq.Insert(ctx, dlqEntry); err != nil {
		l.log.Error("audit event lost: DLQ insert failed",
			"action", ev.Action, "payload", string(payload),
			"cause", cause, "error", err)
		return
	}

	l.log.Warn("audit event parked in DLQ",
		"dlq_id", dlqEntry.ID, "action", ev.Action,
		"entity_type", ev.EntityType, "entity_id", ev.EntityID, "cause", cause)
}

// entryFromEvent copies the prepared event into its persisted shape. The
// entry id is generated here, immediately before hashing.
func entryFromEvent(ev *domain.AuditEvent) *domain.AuditLogEntry {
	return &domain.AuditLogEntry{
		ID:               domain.NewID(),
		Timestamp:        ev.Timestamp,
		Action:           ev.Action,
		ActorID:          ev.ActorID,
		ActorEmail:       ev.ActorEmail,
		ActorType:        ev.ActorType,
		ImpersonatedUser: ev.ImpersonatedUser,
		EntityType:       ev.EntityType,
		EntityID:         ev.EntityID,
		TargetID:         ev.TargetID,
		RequestID:        ev.RequestID,
		CorrelationID:    ev.CorrelationID,
		IP:               ev.IP,
		UserAgent:        ev.UserAgent,
		PrevValues:       ev.PrevValues,
		NewValues:        ev.NewValues,
		Metadata:         ev.Metadata,
		RedactionLevel:   *ev.RedactionLevel,
	}
}

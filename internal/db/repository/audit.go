// Package repository implements the domain repository interfaces on SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
)

const auditEntryColumns = `seq, id, ts, action, actor_id, actor_email, actor_type,
	impersonated_user, entity_type, entity_id, target_id, request_id,
	correlation_id, ip, user_agent, prev_values, new_values, metadata,
	redaction_level, prev_hash, hash`

// AuditLogRepo persists chain entries. It must be constructed over the
// single-connection write pool so the append transaction serializes.
type AuditLogRepo struct {
	db *sql.DB
}

// NewAuditLogRepo creates an AuditLogRepo over the given pool.
func NewAuditLogRepo(db *sql.DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

// GetChainHead returns the hash of the most recently appended entry, or
// domain.GenesisHash when nothing has been written yet.
func (r *AuditLogRepo) GetChainHead(ctx context.Context) (string, error) {
	var head string
	err := r.db.QueryRowContext(ctx, `SELECT hash FROM audit_chain_head WHERE id = 1`).Scan(&head)
	if err != nil {
		return "", fmt.Errorf("read chain head: %w", err)
	}
	return head, nil
}

// AppendEntry inserts the entry and advances the chain head in a single
// transaction. The head update is conditional on the head still being
// expectedHead; when another writer got there first, zero rows update and
// the caller receives domain.ErrChainConflict to retry with a fresh head.
func (r *AuditLogRepo) AppendEntry(ctx context.Context, e *domain.AuditLogEntry, expectedHead string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE audit_chain_head SET hash = ? WHERE id = 1 AND hash = ?`,
		e.Hash, expectedHead)
	if err != nil {
		return fmt.Errorf("advance chain head: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance chain head: %w", err)
	}
	if affected == 0 {
		return domain.ErrChainConflict
	}

	prevValues, err := marshalPayload(e.PrevValues)
	if err != nil {
		return fmt.Errorf("serialize prev values: %w", err)
	}
	newValues, err := marshalPayload(e.NewValues)
	if err != nil {
		return fmt.Errorf("serialize new values: %w", err)
	}
	metadata, err := marshalPayload(e.Metadata)
	if err != nil {
		return fmt.Errorf("serialize metadata: %w", err)
	}

	ts := e.Timestamp.UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log_entries (
			id, ts, ts_unix_ns, action, actor_id, actor_email, actor_type,
			impersonated_user, entity_type, entity_id, target_id, request_id,
			correlation_id, ip, user_agent, prev_values, new_values, metadata,
			redaction_level, prev_hash, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, ts.Format(hashchain.TimestampFormat), ts.UnixNano(),
		e.Action, e.ActorID, e.ActorEmail, e.ActorType,
		e.ImpersonatedUser, e.EntityType, e.EntityID, e.TargetID, e.RequestID,
		e.CorrelationID, e.IP, e.UserAgent, prevValues, newValues, metadata,
		int(e.RedactionLevel), e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if seq, err := result.LastInsertId(); err == nil {
		e.Seq = seq
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// GetByID returns a single entry by its id.
func (r *AuditLogRepo) GetByID(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+auditEntryColumns+` FROM audit_log_entries WHERE id = ?`, id)
	e, err := scanAuditEntry(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("audit entry %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry %s: %w", id, err)
	}
	return e, nil
}

// ListRange returns entries with timestamps in [start, end] in insertion
// order. Nil bounds are open-ended.
func (r *AuditLogRepo) ListRange(ctx context.Context, start, end *time.Time) ([]domain.AuditLogEntry, error) {
	query := `SELECT ` + auditEntryColumns + ` FROM audit_log_entries`
	var conds []string
	var args []any
	if start != nil {
		conds = append(conds, "ts_unix_ns >= ?")
		args = append(args, start.UTC().UnixNano())
	}
	if end != nil {
		conds = append(conds, "ts_unix_ns <= ?")
		args = append(args, end.UTC().UnixNano())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectAuditEntries(rows)
}

// auditFilterConds builds the WHERE fragments shared by the filtered list
// queries.
func auditFilterConds(filter domain.AuditFilter) ([]string, []any) {
	var conds []string
	var args []any
	if filter.From != nil {
		conds = append(conds, "ts_unix_ns >= ?")
		args = append(args, filter.From.UTC().UnixNano())
	}
	if filter.To != nil {
		conds = append(conds, "ts_unix_ns <= ?")
		args = append(args, filter.To.UTC().UnixNano())
	}
	if filter.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, *filter.Action)
	}
	if filter.ActorEmail != nil {
		conds = append(conds, "actor_email = ?")
		args = append(args, *filter.ActorEmail)
	}
	if filter.EntityType != nil {
		conds = append(conds, "entity_type = ?")
		args = append(args, *filter.EntityType)
	}
	if filter.EntityID != nil {
		conds = append(conds, "entity_id = ?")
		args = append(args, *filter.EntityID)
	}
	return conds, args
}

// List returns a filtered, paginated slice of entries plus the total count
// matching the filter.
func (r *AuditLogRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error) {
	conds, args := auditFilterConds(filter)

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT ` + auditEntryColumns + ` FROM audit_log_entries` + where +
		` ORDER BY seq DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Page.Limit(), filter.Page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	entries, err := collectAuditEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListAfterSeq returns up to limit filtered entries with seq greater than
// afterSeq, oldest first. Cursoring on seq keeps pages stable under
// concurrent appends.
func (r *AuditLogRepo) ListAfterSeq(ctx context.Context, filter domain.AuditFilter, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
	conds, args := auditFilterConds(filter)
	conds = append(conds, "seq > ?")
	args = append(args, afterSeq)

	query := `SELECT ` + auditEntryColumns + ` FROM audit_log_entries WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries after seq %d: %w", afterSeq, err)
	}
	defer rows.Close() //nolint:errcheck

	return collectAuditEntries(rows)
}

func marshalPayload(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (*domain.AuditLogEntry, error) {
	var e domain.AuditLogEntry
	var ts string
	var prevValues, newValues, metadata sql.NullString
	var level int

	err := row.Scan(
		&e.Seq, &e.ID, &ts, &e.Action, &e.ActorID, &e.ActorEmail, &e.ActorType,
		&e.ImpersonatedUser, &e.EntityType, &e.EntityID, &e.TargetID, &e.RequestID,
		&e.CorrelationID, &e.IP, &e.UserAgent, &prevValues, &newValues, &metadata,
		&level, &e.PrevHash, &e.Hash,
	)
	if err != nil {
		return nil, err
	}

	e.Timestamp, err = time.Parse(hashchain.TimestampFormat, ts)
	if err != nil {
		return nil, fmt.Errorf("parse entry timestamp %q: %w", ts, err)
	}
	e.RedactionLevel = domain.RedactionLevel(level)

	if e.PrevValues, err = unmarshalPayload(prevValues); err != nil {
		return nil, fmt.Errorf("parse prev values: %w", err)
	}
	if e.NewValues, err = unmarshalPayload(newValues); err != nil {
		return nil, fmt.Errorf("parse new values: %w", err)
	}
	if e.Metadata, err = unmarshalPayload(metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &e, nil
}

func unmarshalPayload(s sql.NullString) (map[string]any, error) {
	if !s.Valid {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func collectAuditEntries(rows *sql.Rows) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// Interface guard.
var _ domain.AuditLogRepository = (*AuditLogRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
)

const dlqColumns = `id, payload, reason, retry_count, last_retry_at, last_error, resolved, created_at`

// DLQRepo persists audit events that failed to reach the chain.
type DLQRepo struct {
	db *sql.DB
}

// NewDLQRepo creates a DLQRepo over the given pool.
func NewDLQRepo(db *sql.DB) *DLQRepo {
	return &DLQRepo{db: db}
}

// Insert parks a failed event.
func (r *DLQRepo) Insert(ctx context.Context, e *domain.DLQEntry) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var lastRetry any
	if e.LastRetryAt != nil {
		lastRetry = e.LastRetryAt.UTC().Format(hashchain.TimestampFormat)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_dlq (id, payload, reason, retry_count, last_retry_at, last_error, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Payload), e.Reason, e.RetryCount, lastRetry, e.LastError,
		boolToInt(e.Resolved), e.CreatedAt.UTC().Format(hashchain.TimestampFormat),
	)
	if err != nil {
		return fmt.Errorf("insert dlq entry: %w", err)
	}
	return nil
}

// ListRetryable returns unresolved entries that have not yet exhausted
// their retries, oldest first.
func (r *DLQRepo) ListRetryable(ctx context.Context, maxRetries int) ([]domain.DLQEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dlqColumns+` FROM audit_dlq
		WHERE resolved = 0 AND retry_count < ?
		ORDER BY created_at ASC`, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("list retryable dlq entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectDLQEntries(rows)
}

// ListUnresolved returns all unresolved entries, newest first, with total.
func (r *DLQRepo) ListUnresolved(ctx context.Context, page domain.PageRequest) ([]domain.DLQEntry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_dlq WHERE resolved = 0`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count unresolved dlq entries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dlqColumns+` FROM audit_dlq
		WHERE resolved = 0
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list unresolved dlq entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	entries, err := collectDLQEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MarkResolvedBatch flips the resolved flag for the given ids in one
// statement. Successful replays are batched since their outcome is uniform.
func (r *DLQRepo) MarkResolvedBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_dlq SET resolved = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("mark dlq entries resolved: %w", err)
	}
	return nil
}

// RecordFailure increments the retry count and stores the latest error.
// Failures are recorded individually since each replay fails differently.
func (r *DLQRepo) RecordFailure(ctx context.Context, id string, lastError string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE audit_dlq
		SET retry_count = retry_count + 1, last_error = ?, last_retry_at = ?
		WHERE id = ?`,
		lastError, at.UTC().Format(hashchain.TimestampFormat), id)
	if err != nil {
		return fmt.Errorf("record dlq failure: %w", err)
	}
	return nil
}

func collectDLQEntries(rows *sql.Rows) ([]domain.DLQEntry, error) {
	var entries []domain.DLQEntry
	for rows.Next() {
		var e domain.DLQEntry
		var payload, createdAt string
		var lastRetry sql.NullString
		var resolved int
		if err := rows.Scan(&e.ID, &payload, &e.Reason, &e.RetryCount,
			&lastRetry, &e.LastError, &resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dlq entry: %w", err)
		}
		e.Payload = []byte(payload)
		e.Resolved = resolved != 0

		var err error
		if e.CreatedAt, err = time.Parse(hashchain.TimestampFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse dlq created_at %q: %w", createdAt, err)
		}
		if lastRetry.Valid {
			t, err := time.Parse(hashchain.TimestampFormat, lastRetry.String)
			if err != nil {
				return nil, fmt.Errorf("parse dlq last_retry_at %q: %w", lastRetry.String, err)
			}
			e.LastRetryAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dlq entries: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Interface guard.
var _ domain.DLQRepository = (*DLQRepo)(nil)

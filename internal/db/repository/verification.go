package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
)

// VerificationRepo persists chain verification results.
type VerificationRepo struct {
	db *sql.DB
}

// NewVerificationRepo creates a VerificationRepo over the given pool.
func NewVerificationRepo(db *sql.DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

// Insert stores one verification result record.
func (r *VerificationRepo) Insert(ctx context.Context, v *domain.ChainVerificationResult) error {
	if v.ID == "" {
		v.ID = domain.NewID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chain_verifications (
			id, range_start, range_end, total_entries, verified_entries,
			status, first_failure_id, first_failure_ts, expected_hash,
			actual_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, formatOptTime(v.RangeStart), formatOptTime(v.RangeEnd),
		v.TotalEntries, v.VerifiedEntries, string(v.Status), v.FirstFailureID,
		formatOptTime(v.FirstFailureTS), v.ExpectedHash, v.ActualHash,
		v.CreatedAt.UTC().Format(hashchain.TimestampFormat),
	)
	if err != nil {
		return fmt.Errorf("insert chain verification: %w", err)
	}
	return nil
}

// List returns verification results, newest first, with total count.
func (r *VerificationRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.ChainVerificationResult, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chain_verifications`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chain verifications: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, range_start, range_end, total_entries, verified_entries,
			status, first_failure_id, first_failure_ts, expected_hash,
			actual_hash, created_at
		FROM chain_verifications
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list chain verifications: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []domain.ChainVerificationResult
	for rows.Next() {
		var v domain.ChainVerificationResult
		var rangeStart, rangeEnd, failureTS sql.NullString
		var status, createdAt string
		if err := rows.Scan(&v.ID, &rangeStart, &rangeEnd, &v.TotalEntries,
			&v.VerifiedEntries, &status, &v.FirstFailureID, &failureTS,
			&v.ExpectedHash, &v.ActualHash, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan chain verification: %w", err)
		}
		v.Status = domain.ChainStatus(status)

		if v.RangeStart, err = parseOptTime(rangeStart); err != nil {
			return nil, 0, err
		}
		if v.RangeEnd, err = parseOptTime(rangeEnd); err != nil {
			return nil, 0, err
		}
		if v.FirstFailureTS, err = parseOptTime(failureTS); err != nil {
			return nil, 0, err
		}
		if v.CreatedAt, err = time.Parse(hashchain.TimestampFormat, createdAt); err != nil {
			return nil, 0, fmt.Errorf("parse verification created_at %q: %w", createdAt, err)
		}
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate chain verifications: %w", err)
	}
	return results, total, nil
}

func formatOptTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(hashchain.TimestampFormat)
}

func parseOptTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(hashchain.TimestampFormat, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse verification timestamp %q: %w", s.String, err)
	}
	return &t, nil
}

// Interface guard.
var _ domain.VerificationRepository = (*VerificationRepo)(nil)

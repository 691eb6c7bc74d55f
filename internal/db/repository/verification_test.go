package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/db"
	"deskaudit/internal/domain"
)

func newTestVerificationRepo(t *testing.T) *VerificationRepo {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	return NewVerificationRepo(writeDB)
}

func TestVerificationRepo_InsertAndList(t *testing.T) {
	repo := newTestVerificationRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	failTS := start.Add(10 * time.Minute)

	invalid := &domain.ChainVerificationResult{
		RangeStart:      &start,
		RangeEnd:        &end,
		TotalEntries:    10,
		VerifiedEntries: 4,
		Status:          domain.ChainInvalid,
		FirstFailureID:  "e-5",
		FirstFailureTS:  &failTS,
		ExpectedHash:    "aaaa",
		ActualHash:      "bbbb",
		CreatedAt:       start.Add(2 * time.Hour),
	}
	require.NoError(t, repo.Insert(ctx, invalid))
	assert.NotEmpty(t, invalid.ID, "id generated on insert")

	full := &domain.ChainVerificationResult{
		TotalEntries:    10,
		VerifiedEntries: 10,
		Status:          domain.ChainValid,
		CreatedAt:       start.Add(3 * time.Hour),
	}
	require.NoError(t, repo.Insert(ctx, full))

	results, total, err := repo.List(ctx, domain.PageRequest{})

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, results, 2)

	// Newest first.
	assert.Equal(t, full.ID, results[0].ID)
	assert.Nil(t, results[0].RangeStart, "full scans have no range")
	assert.Equal(t, domain.ChainValid, results[0].Status)

	got := results[1]
	assert.Equal(t, invalid.ID, got.ID)
	assert.Equal(t, domain.ChainInvalid, got.Status)
	assert.Equal(t, "e-5", got.FirstFailureID)
	assert.Equal(t, "aaaa", got.ExpectedHash)
	assert.Equal(t, "bbbb", got.ActualHash)
	require.NotNil(t, got.RangeStart)
	assert.True(t, got.RangeStart.Equal(start))
	require.NotNil(t, got.FirstFailureTS)
	assert.True(t, got.FirstFailureTS.Equal(failTS))
	assert.Equal(t, 4, got.VerifiedEntries)
}

func TestVerificationRepo_ListPagination(t *testing.T) {
	repo := newTestVerificationRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.ChainVerificationResult{
			Status:    domain.ChainValid,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	results, total, err := repo.List(ctx, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, results, 2)

	next := domain.NextPageToken(0, 2, total)
	results, _, err = repo.List(ctx, domain.PageRequest{MaxResults: 2, PageToken: next})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

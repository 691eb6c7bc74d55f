package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/domain"
	"deskaudit/internal/testutil"
)

func newTestExporter(t *testing.T, seeded int) (*Exporter, *testutil.MockAuditLogRepo) {
	t.Helper()
	repo := &testutil.MockAuditLogRepo{}
	seedChain(t, repo, seeded)
	logger := newTestLogger(repo, &testutil.MockDLQRepo{})
	return NewExporter(repo, logger), repo
}

func exportedIDs(t *testing.T, entries []domain.AuditLogEntry) []string {
	t.Helper()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestExporter_Export(t *testing.T) {
	t.Run("jsonl", func(t *testing.T) {
		exporter, repo := newTestExporter(t, 3)

		var buf bytes.Buffer
		count, err := exporter.Export(adminCtx(), &buf, FormatJSONL, domain.AuditFilter{})

		require.NoError(t, err)
		assert.Equal(t, 3, count)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		for _, line := range lines {
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			assert.NotEmpty(t, rec["id"])
			assert.NotEmpty(t, rec["hash"])
			assert.NotEmpty(t, rec["prevHash"])
		}

		// The export itself lands in the audit log.
		assert.True(t, repo.HasAction(domain.ActionAuditExport))
		exportEntry := repo.LastEntry()
		assert.Equal(t, FormatJSONL, exportEntry.Metadata["format"])
		assert.Equal(t, float64(3), exportEntry.Metadata["entries"])
		assert.Equal(t, "admin@example.com", exportEntry.ActorEmail)
	})

	t.Run("csv", func(t *testing.T) {
		exporter, _ := newTestExporter(t, 2)

		var buf bytes.Buffer
		count, err := exporter.Export(adminCtx(), &buf, FormatCSV, domain.AuditFilter{})

		require.NoError(t, err)
		assert.Equal(t, 2, count)

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3, "header plus two rows")
		assert.Equal(t, "id", records[0][0])
		assert.Equal(t, "hash", records[0][len(records[0])-1])
		assert.Len(t, records[1], len(records[0]))
	})

	t.Run("paginates_large_exports", func(t *testing.T) {
		// More entries than one export page.
		exporter, _ := newTestExporter(t, exportPageSize+7)

		var buf bytes.Buffer
		count, err := exporter.Export(adminCtx(), &buf, FormatJSONL, domain.AuditFilter{})

		require.NoError(t, err)
		assert.Equal(t, exportPageSize+7, count)
	})

	t.Run("output_follows_chain_order", func(t *testing.T) {
		exporter, repo := newTestExporter(t, 5)
		chainIDs := exportedIDs(t, repo.ChainEntries())

		var buf bytes.Buffer
		_, err := exporter.Export(adminCtx(), &buf, FormatJSONL, domain.AuditFilter{})
		require.NoError(t, err)

		var gotIDs []string
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			gotIDs = append(gotIDs, rec["id"].(string))
		}
		// Oldest first, matching chain append order — not newest-first.
		assert.Equal(t, chainIDs, gotIDs)
	})

	t.Run("concurrent_append_does_not_shift_pages", func(t *testing.T) {
		exporter, repo := newTestExporter(t, exportPageSize+2)
		logger := newTestLogger(repo, &testutil.MockDLQRepo{})

		// An append lands between the first and second export page.
		pages := 0
		repo.ListAfterSeqFn = func(_ context.Context, _ domain.AuditFilter, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
			pages++
			if pages == 2 {
				require.NoError(t, logger.LogEvent(adminCtx(), &domain.AuditEvent{
					Action:     domain.ActionTicketCreated,
					EntityType: "ticket",
					EntityID:   "t-mid-export",
				}))
			}
			var out []domain.AuditLogEntry
			for _, e := range repo.ChainEntries() {
				if e.Seq <= afterSeq {
					continue
				}
				out = append(out, e)
				if len(out) == limit {
					break
				}
			}
			return out, nil
		}

		var buf bytes.Buffer
		count, err := exporter.Export(adminCtx(), &buf, FormatJSONL, domain.AuditFilter{})
		require.NoError(t, err)
		repo.ListAfterSeqFn = nil

		// Every chain entry present in the export exactly once, in order.
		seen := make(map[string]int)
		var gotIDs []string
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			id := rec["id"].(string)
			seen[id]++
			gotIDs = append(gotIDs, id)
		}
		assert.Equal(t, exportPageSize+3, count, "late append included, nothing skipped")
		for id, n := range seen {
			assert.Equal(t, 1, n, "entry %s exported %d times", id, n)
		}
		assert.Equal(t, exportedIDs(t, repo.ChainEntries())[:count], gotIDs)
	})

	t.Run("unsupported_format", func(t *testing.T) {
		exporter, _ := newTestExporter(t, 1)

		var buf bytes.Buffer
		_, err := exporter.Export(adminCtx(), &buf, "xml", domain.AuditFilter{})

		var validation *domain.ValidationError
		require.Error(t, err)
		assert.True(t, errors.As(err, &validation))
	})

	t.Run("non_admin_denied", func(t *testing.T) {
		exporter, _ := newTestExporter(t, 1)

		var buf bytes.Buffer
		_, err := exporter.Export(context.Background(), &buf, FormatJSONL, domain.AuditFilter{})

		var denied *domain.AccessDeniedError
		require.Error(t, err)
		assert.True(t, errors.As(err, &denied))
		assert.Zero(t, buf.Len(), "nothing written before the permission check")
	})
}

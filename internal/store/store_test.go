package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicepipe/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(requiresReview bool) *models.ProcessingResult {
	total := 110.0
	r := &models.ProcessingResult{
		ID:          "a2f1c050-0000-4000-8000-000000000001",
		SourceFile:  "inbox/INV-001.pdf",
		ProcessedAt: "2026-08-01T10:00:00Z",
		ExtractedInvoice: models.ExtractedInvoice{
			InvoiceNumber: "INV-001",
			InvoiceDate:   "2026-07-30",
			Supplier:      &models.SupplierInfo{Name: "Acme Pty Ltd"},
			PONumber:      "PO-1001",
			Total:         &total,
			Currency:      "AUD",
		},
	}
	if requiresReview {
		r.Discrepancies = []models.Discrepancy{{
			Type:        models.DiscMissingTotal,
			Severity:    models.SeverityError,
			Description: "Invoice total is missing",
		}}
	}
	r.ComputeSummary()
	return r
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	status, err := s.Upsert(ctx, "INV-001", sampleResult(false), mtime)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, status)

	got, err := s.Get(ctx, "INV-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-001", got.ExtractedInvoice.InvoiceNumber)
	require.NotNil(t, got.ExtractedInvoice.Total)
	assert.Equal(t, 110.0, *got.ExtractedInvoice.Total)

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertStatusFollowsReview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	status, err := s.Upsert(ctx, "INV-002", sampleResult(true), mtime)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, status)

	// Reprocessing a now-clean result flips it back to ready.
	status, err = s.Upsert(ctx, "INV-002", sampleResult(false), mtime)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, status)
}

func TestIsProcessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	ok, err := s.IsProcessed(ctx, "INV-001", mtime)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Upsert(ctx, "INV-001", sampleResult(false), mtime)
	require.NoError(t, err)

	ok, err = s.IsProcessed(ctx, "INV-001", mtime)
	require.NoError(t, err)
	assert.True(t, ok)

	// A re-dropped file with a newer mtime must be reprocessed.
	ok, err = s.IsProcessed(ctx, "INV-001", mtime.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	err := s.RecordFailure(ctx, "BAD-001", "inbox/BAD-001.pdf", mtime, errors.New("extraction failed"))
	require.NoError(t, err)

	// Failure is remembered so the watch loop skips the file.
	ok, err := s.IsProcessed(ctx, "BAD-001", mtime)
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := s.List(ctx, StatusNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BAD-001", records[0].Stem)
	assert.Equal(t, 1, records[0].ErrorCount)
}

func TestUpdateStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "INV-001", sampleResult(false), time.Unix(1700000000, 0))
	require.NoError(t, err)

	found, err := s.UpdateStatus(ctx, "INV-001", StatusExported)
	require.NoError(t, err)
	assert.True(t, found)

	records, err := s.List(ctx, StatusExported, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ExportedAt)

	found, err = s.UpdateStatus(ctx, "missing", StatusReady)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.UpdateStatus(ctx, "INV-001", "bogus")
	assert.Error(t, err)
}

func TestListAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	_, err := s.Upsert(ctx, "INV-001", sampleResult(false), mtime)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "INV-002", sampleResult(true), mtime)
	require.NoError(t, err)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	review, err := s.List(ctx, StatusNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "INV-002", review[0].Stem)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[StatusReady])
	assert.Equal(t, 1, stats[StatusNeedsReview])
}

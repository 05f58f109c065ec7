// Package store persists processing results in a single SQLite file.
//
// The database tracks processing state so watch mode never reprocesses
// an unchanged file, keeps the full result payload for later export, and
// supports status based filtering.
//
// Status lifecycle:
//
//	needs_review  Processing flagged issues. An operator must review
//	              before export.
//	ready         Clean result, exportable directly.
//	exported      Export has been delivered. Record kept for audit.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

const (
	StatusNeedsReview = "needs_review"
	StatusReady       = "ready"
	StatusExported    = "exported"
)

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s string) bool {
	return s == StatusNeedsReview || s == StatusReady || s == StatusExported
}

const schema = `
CREATE TABLE IF NOT EXISTS invoices (
    stem              TEXT PRIMARY KEY,
    source_file       TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'needs_review',

    invoice_number    TEXT,
    invoice_date      TEXT,
    due_date          TEXT,
    supplier_name     TEXT,
    matched_supplier  TEXT,
    total             REAL,
    currency          TEXT,
    po_number         TEXT,
    matched_po        TEXT,

    error_count       INTEGER NOT NULL DEFAULT 0,
    warning_count     INTEGER NOT NULL DEFAULT 0,
    discrepancy_count INTEGER NOT NULL DEFAULT 0,

    result_json       TEXT NOT NULL,

    processed_at      TEXT NOT NULL,
    processing_time_seconds REAL,
    llm_model_used    TEXT,
    exported_at       TEXT,

    source_mtime      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_invoices_status       ON invoices (status);
CREATE INDEX IF NOT EXISTS idx_invoices_processed_at ON invoices (processed_at DESC);
CREATE INDEX IF NOT EXISTS idx_invoices_supplier     ON invoices (supplier_name);
`

// Record is an invoice row without the result payload, as returned by
// List.
type Record struct {
	Stem             string
	SourceFile       string
	Status           string
	InvoiceNumber    string
	SupplierName     string
	MatchedSupplier  string
	Total            sql.NullFloat64
	Currency         string
	PONumber         string
	MatchedPO        string
	ErrorCount       int
	WarningCount     int
	DiscrepancyCount int
	ProcessedAt      string
	ExportedAt       string
}

// Store is the SQLite-backed invoice state database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	const op = "Open"

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: failed to create database directory: %w", op, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to initialize schema: %w", op, err)
	}

	s := &Store{db: db, log: logger.WithComponent("store")}
	s.log.Debug().Str("path", path).Msg("Database schema ready")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or fully replaces the record for one invoice after a
// processing pass. Returns the assigned status.
func (s *Store) Upsert(ctx context.Context, stem string, result *models.ProcessingResult, sourceMTime time.Time) (string, error) {
	const op = "Upsert"

	status := StatusReady
	if result.RequiresReview {
		status = StatusNeedsReview
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode result: %w", op, err)
	}

	inv := &result.ExtractedInvoice
	var matchedSupplier string
	if result.MatchedSupplier != nil {
		matchedSupplier = result.MatchedSupplier.SupplierName
	}
	var matchedPO string
	if result.MatchedPO != nil {
		matchedPO = result.MatchedPO.PONumber
	}
	var total any
	if inv.Total != nil {
		total = *inv.Total
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			stem, source_file, status,
			invoice_number, invoice_date, due_date,
			supplier_name, matched_supplier,
			total, currency, po_number, matched_po,
			error_count, warning_count, discrepancy_count,
			result_json,
			processed_at, processing_time_seconds, llm_model_used,
			source_mtime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stem) DO UPDATE SET
			source_file             = excluded.source_file,
			status                  = excluded.status,
			invoice_number          = excluded.invoice_number,
			invoice_date            = excluded.invoice_date,
			due_date                = excluded.due_date,
			supplier_name           = excluded.supplier_name,
			matched_supplier        = excluded.matched_supplier,
			total                   = excluded.total,
			currency                = excluded.currency,
			po_number               = excluded.po_number,
			matched_po              = excluded.matched_po,
			error_count             = excluded.error_count,
			warning_count           = excluded.warning_count,
			discrepancy_count       = excluded.discrepancy_count,
			result_json             = excluded.result_json,
			processed_at            = excluded.processed_at,
			processing_time_seconds = excluded.processing_time_seconds,
			llm_model_used          = excluded.llm_model_used,
			exported_at             = NULL,
			source_mtime            = excluded.source_mtime`,
		stem, result.SourceFile, status,
		inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.SupplierName(), matchedSupplier,
		total, inv.Currency, inv.PONumber, matchedPO,
		result.ErrorCount, result.WarningCount, len(result.Discrepancies),
		string(payload),
		result.ProcessedAt, result.ProcessingTimeSeconds, result.LLMModelUsed,
		sourceMTime.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("%s: failed to upsert invoice: %w", op, err)
	}

	s.log.Info().Str("stem", stem).Str("status", status).Msg("Result persisted")
	return status, nil
}

// RecordFailure stores a minimal needs_review record for a file that
// could not be processed, so the watch loop does not retry it on every
// poll.
func (s *Store) RecordFailure(ctx context.Context, stem, sourceFile string, sourceMTime time.Time, procErr error) error {
	const op = "RecordFailure"

	payload, _ := json.Marshal(map[string]any{
		"source_file":     sourceFile,
		"error":           procErr.Error(),
		"requires_review": true,
		"error_count":     1,
	})

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			stem, source_file, status, error_count, result_json,
			processed_at, source_mtime
		) VALUES (?, ?, 'needs_review', 1, ?, ?, ?)
		ON CONFLICT(stem) DO UPDATE SET
			status       = 'needs_review',
			error_count  = 1,
			result_json  = excluded.result_json,
			processed_at = excluded.processed_at,
			exported_at  = NULL,
			source_mtime = excluded.source_mtime`,
		stem, sourceFile, string(payload),
		time.Now().UTC().Format(time.RFC3339), sourceMTime.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to record failure: %w", op, err)
	}
	return nil
}

// IsProcessed reports whether stem was already processed from a source
// file with this mtime. A changed mtime means the file was re-dropped
// and should be reprocessed.
func (s *Store) IsProcessed(ctx context.Context, stem string, sourceMTime time.Time) (bool, error) {
	const op = "IsProcessed"

	var stored int64
	err := s.db.QueryRowContext(ctx,
		"SELECT source_mtime FROM invoices WHERE stem = ?", stem).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: query failed: %w", op, err)
	}
	return stored == sourceMTime.Unix(), nil
}

// UpdateStatus sets the status of an invoice, stamping exported_at when
// moving to exported. Returns false when no record exists for stem.
func (s *Store) UpdateStatus(ctx context.Context, stem, status string) (bool, error) {
	const op = "UpdateStatus"

	if !ValidStatus(status) {
		return false, fmt.Errorf("%s: invalid status %q", op, status)
	}

	var res sql.Result
	var err error
	if status == StatusExported {
		res, err = s.db.ExecContext(ctx,
			"UPDATE invoices SET status = ?, exported_at = ? WHERE stem = ?",
			status, time.Now().UTC().Format(time.RFC3339), stem)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE invoices SET status = ? WHERE stem = ?", status, stem)
	}
	if err != nil {
		return false, fmt.Errorf("%s: update failed: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// Get returns the full stored processing result for stem, or nil when
// no record exists.
func (s *Store) Get(ctx context.Context, stem string) (*models.ProcessingResult, error) {
	const op = "Get"

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT result_json FROM invoices WHERE stem = ?", stem).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}

	var result models.ProcessingResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("%s: failed to decode stored result: %w", op, err)
	}
	return &result, nil
}

// List returns invoice summaries newest first, optionally filtered by
// status. An empty status returns all records.
func (s *Store) List(ctx context.Context, status string, limit int) ([]Record, error) {
	const op = "List"

	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT stem, source_file, status,
		       COALESCE(invoice_number, ''), COALESCE(supplier_name, ''),
		       COALESCE(matched_supplier, ''), total, COALESCE(currency, ''),
		       COALESCE(po_number, ''), COALESCE(matched_po, ''),
		       error_count, warning_count, discrepancy_count,
		       processed_at, COALESCE(exported_at, '')
		FROM invoices`
	args := []any{}
	if status != "" {
		if !ValidStatus(status) {
			return nil, fmt.Errorf("%s: invalid status %q", op, status)
		}
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY processed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.Stem, &r.SourceFile, &r.Status,
			&r.InvoiceNumber, &r.SupplierName,
			&r.MatchedSupplier, &r.Total, &r.Currency,
			&r.PONumber, &r.MatchedPO,
			&r.ErrorCount, &r.WarningCount, &r.DiscrepancyCount,
			&r.ProcessedAt, &r.ExportedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan failed: %w", op, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

// Stats returns record counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	const op = "Stats"

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM invoices GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: scan failed: %w", op, err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

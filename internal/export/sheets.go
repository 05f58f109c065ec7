package export

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// SheetsExporter appends processing result summaries to a Google Sheet.
type SheetsExporter struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// sheetHeaders are the columns written to row 1 of a fresh sheet. Order
// must match resultToValues.
var sheetHeaders = []any{
	"File", "Invoice No", "Invoice Date", "Supplier", "Matched Supplier",
	"PO Number", "PO Matched", "Total", "Currency",
	"Errors", "Warnings", "Review Reasons", "Status", "Processed At",
}

// NewSheetsExporter creates an exporter for the spreadsheet behind the
// given URL, using service account credentials from the environment.
func NewSheetsExporter(ctx context.Context, sheetURL string) (*SheetsExporter, error) {
	const op = "NewSheetsExporter"

	log := logger.WithComponent("sheets-export")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &SheetsExporter{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// extractSpreadsheetID pulls the spreadsheet ID out of a Google Sheets
// URL.
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// AppendResults writes one row per processing result to the named sheet,
// creating the sheet with headers if needed.
func (e *SheetsExporter) AppendResults(ctx context.Context, results []*models.ProcessingResult, sheetName string) error {
	const op = "AppendResults"

	e.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(results)).
		Msg("Writing results to Google Sheet")

	if err := e.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	var values [][]any
	for _, result := range results {
		values = append(values, resultToValues(result))
	}

	_, err := e.sheetsService.Spreadsheets.Values.Append(
		e.spreadsheetID,
		sheetName+"!A:N",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	e.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote results to Google Sheet")
	return nil
}

// resultToValues flattens a result to one spreadsheet row. Column order
// must match sheetHeaders.
func resultToValues(r *models.ProcessingResult) []any {
	inv := &r.ExtractedInvoice

	var matchedSupplier string
	if r.MatchedSupplier != nil {
		matchedSupplier = r.MatchedSupplier.SupplierName
	}
	poMatched := ""
	if r.MatchedPO != nil {
		if r.MatchedPO.Found() {
			poMatched = "yes"
		} else {
			poMatched = "not found"
		}
	}
	var total any
	if inv.Total != nil {
		total = *inv.Total
	}
	status := "ready"
	if r.RequiresReview {
		status = "needs review"
	}

	return []any{
		r.SourceFile,
		inv.InvoiceNumber,
		inv.InvoiceDate,
		inv.SupplierName(),
		matchedSupplier,
		inv.PONumber,
		poMatched,
		total,
		inv.Currency,
		r.ErrorCount,
		r.WarningCount,
		strings.Join(r.ReviewReasons, "; "),
		status,
		r.ProcessedAt,
	}
}

// ensureSheetWithHeaders creates the sheet if missing and writes the
// header row when A1 is empty.
func (e *SheetsExporter) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := e.sheetsService.Spreadsheets.Get(e.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	sheetExists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetExists = true
			break
		}
	}

	if !sheetExists {
		e.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")
		_, err := e.sheetsService.Spreadsheets.BatchUpdate(e.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheetName},
				}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
	}

	headerRange := fmt.Sprintf("%s!A1:N1", sheetName)
	resp, err := e.sheetsService.Spreadsheets.Values.Get(e.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		e.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")
		_, err := e.sheetsService.Spreadsheets.Values.Update(
			e.spreadsheetID,
			headerRange,
			&sheets.ValueRange{Values: [][]any{sheetHeaders}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to write headers: %w", op, err)
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicepipe/internal/config"
	"invoicepipe/internal/extract"
	"invoicepipe/internal/llm"
	"invoicepipe/internal/refdata"
	"invoicepipe/internal/store"
	"invoicepipe/internal/validate"
	"invoicepipe/pkg/models"
)

// fakeExtractor returns a canned extraction for any file.
type fakeExtractor struct {
	extraction *extract.DocumentExtraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, pdfPath string) (*extract.DocumentExtraction, error) {
	return f.extraction, f.err
}

func (f *fakeExtractor) Name() string { return "fake" }

// fakeParser returns a canned invoice, honoring the pre-extracted line
// item contract the way the real parser does.
type fakeParser struct {
	invoice *models.ExtractedInvoice
	err     error
}

func (f *fakeParser) Parse(ctx context.Context, text string, preExtracted []models.LineItem) (*models.ExtractedInvoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	inv := *f.invoice
	if len(preExtracted) > 0 {
		inv.LineItems = preExtracted
	}
	return &inv, nil
}

func (f *fakeParser) CheckConnection(ctx context.Context) llm.ConnectionStatus {
	return llm.ConnectionStatus{OK: true}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testEnv builds a processor over real reference data CSVs and a real
// SQLite store, with extraction and parsing faked out.
func testEnv(t *testing.T, extractor extract.Extractor, parser llm.Parser) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()

	suppliersCSV := filepath.Join(dir, "suppliers.csv")
	writeFile(t, suppliersCSV, `id,name,tax_id,company_id,email,phone,address,aliases
SUP-001,Acme Pty Ltd,12 345 678 901,,billing@acme.example,,,ACME Corp|ACME
SUP-002,Widget Wholesale,98 765 432 109,,sales@widgetwholesale.example,,,
`)

	poCSV := filepath.Join(dir, "purchase_orders.csv")
	writeFile(t, poCSV, `po_number,supplier_id,supplier_name,issue_date,expected_delivery,subtotal,tax_amount,total,currency,status,notes
PO-1001,SUP-001,Acme Pty Ltd,2026-07-01,2026-07-15,100.00,10.00,110.00,AUD,open,
`)

	poLinesCSV := filepath.Join(dir, "po_lines.csv")
	writeFile(t, poLinesCSV, `po_number,line_number,sku,description,quantity,unit,unit_price,total
PO-1001,1,WID-001,Widget,10,ea,5.00,50.00
PO-1001,2,GAD-002,Gadget,5,ea,10.00,50.00
`)

	ref, err := refdata.NewStore(suppliersCSV, poCSV, poLinesCSV)
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(dir, "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		OpenAIModel:            "test-model",
		SupplierFuzzyThreshold: 75,
		POLineFuzzyThreshold:   65,
		MaxInvoiceAgeDays:      90,
		MaxFutureDays:          7,
		ArithmeticTolerance:    0.05,
		DBPath:                 filepath.Join(dir, "pipeline.db"),
	}

	return NewWithDeps(cfg, ref, extractor, parser, db), dir
}

func f64(v float64) *float64 { return &v }

// newTestValidator pins the validator clock to a fixed day so date
// rules behave deterministically.
func newTestValidator(t *testing.T, today string) *validate.Validator {
	t.Helper()
	day, err := time.Parse("2006-01-02", today)
	require.NoError(t, err)
	return validate.New(validate.Config{Clock: func() time.Time { return day }})
}

func TestProcessEndToEnd(t *testing.T) {
	extractor := &fakeExtractor{extraction: &extract.DocumentExtraction{
		Text:          "TAX INVOICE INV-001 ...",
		ExtractorName: "fake",
	}}
	parser := &fakeParser{invoice: &models.ExtractedInvoice{
		InvoiceNumber: "INV-001",
		InvoiceDate:   "2026-07-20",
		Supplier: &models.SupplierInfo{
			Name:  "ACME Corp",
			TaxID: "12 345 678 901",
		},
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			{SKU: "WID-001", Description: "Widget", Quantity: f64(12), UnitPrice: f64(5.00), Total: f64(50.00)},
			{SKU: "GAD-002", Description: "Gadget", Quantity: f64(5), UnitPrice: f64(10.00), Total: f64(50.00)},
		},
		Subtotal:  f64(100.00),
		TaxRate:   f64(0.10),
		TaxAmount: f64(10.00),
		Total:     f64(110.00),
		Currency:  "AUD",
	}}

	p, dir := testEnv(t, extractor, parser)
	pdf := filepath.Join(dir, "INV-001.pdf")
	writeFile(t, pdf, "%PDF-1.4 fake")

	// Pin "today" so the date rules stay quiet.
	p.validator = newTestValidator(t, "2026-07-25")

	result, err := p.Process(context.Background(), pdf)
	require.NoError(t, err)

	// Supplier resolves by registration number despite the alias name.
	require.NotNil(t, result.MatchedSupplier)
	assert.Equal(t, "SUP-001", result.MatchedSupplier.SupplierID)
	assert.Equal(t, models.MatchMethodTaxIDExact, result.MatchedSupplier.MatchMethod)

	// PO found; first line over-delivered (12 vs 10).
	require.NotNil(t, result.MatchedPO)
	assert.True(t, result.MatchedPO.Found())
	require.Len(t, result.MatchedPO.LineMatches, 2)
	require.NotNil(t, result.MatchedPO.LineMatches[0].QuantityMatches)
	assert.False(t, *result.MatchedPO.LineMatches[0].QuantityMatches)

	// Quantity mismatch is a warning, so the invoice needs review.
	assert.True(t, result.RequiresReview)
	assert.Zero(t, result.ErrorCount)
	assert.NotZero(t, result.WarningCount)
	assert.Contains(t, discTypes(result.Discrepancies), models.DiscPOLineQuantityMismatch)

	// Persisted with the review status.
	records, err := p.DB().List(context.Background(), store.StatusNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "INV-001", records[0].Stem)
}

func TestProcessCleanInvoiceIsReady(t *testing.T) {
	extractor := &fakeExtractor{extraction: &extract.DocumentExtraction{
		Text:          "TAX INVOICE INV-002",
		ExtractorName: "fake",
	}}
	parser := &fakeParser{invoice: &models.ExtractedInvoice{
		InvoiceNumber: "INV-002",
		InvoiceDate:   "2026-07-20",
		Supplier:      &models.SupplierInfo{Name: "Acme Pty Ltd"},
		PONumber:      "PO-1001",
		LineItems: []models.LineItem{
			{SKU: "WID-001", Description: "Widget", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
			{SKU: "GAD-002", Description: "Gadget", Quantity: f64(5), UnitPrice: f64(10.00), Total: f64(50.00)},
		},
		Subtotal:  f64(100.00),
		TaxRate:   f64(0.10),
		TaxAmount: f64(10.00),
		Total:     f64(110.00),
		Currency:  "AUD",
	}}

	p, dir := testEnv(t, extractor, parser)
	pdf := filepath.Join(dir, "INV-002.pdf")
	writeFile(t, pdf, "%PDF-1.4 fake")
	p.validator = newTestValidator(t, "2026-07-25")

	result, err := p.Process(context.Background(), pdf)
	require.NoError(t, err)

	assert.False(t, result.RequiresReview, "discrepancies: %v", result.Discrepancies)
	records, err := p.DB().List(context.Background(), store.StatusReady, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProcessUsesTableLineItems(t *testing.T) {
	extractor := &fakeExtractor{extraction: &extract.DocumentExtraction{
		Text:          "TAX INVOICE INV-003",
		ExtractorName: "fake",
		Tables: []extract.Table{{
			Headers: []string{"SKU", "Description", "Qty", "Unit Price", "Total"},
			Rows: [][]string{
				{"WID-001", "Widget", "10", "5.00", "50.00"},
			},
		}},
	}}
	// The parser's own line items must be discarded in favor of the
	// table-derived ones.
	parser := &fakeParser{invoice: &models.ExtractedInvoice{
		InvoiceNumber: "INV-003",
		LineItems: []models.LineItem{
			{Description: "Hallucinated item", Total: f64(999)},
		},
	}}

	p, dir := testEnv(t, extractor, parser)
	pdf := filepath.Join(dir, "INV-003.pdf")
	writeFile(t, pdf, "%PDF-1.4 fake")

	result, err := p.Process(context.Background(), pdf)
	require.NoError(t, err)
	require.Len(t, result.ExtractedInvoice.LineItems, 1)
	assert.Equal(t, "Widget", result.ExtractedInvoice.LineItems[0].Description)
}

func TestProcessBatchSkipsProcessed(t *testing.T) {
	extractor := &fakeExtractor{extraction: &extract.DocumentExtraction{
		Text:          "TAX INVOICE",
		ExtractorName: "fake",
	}}
	parser := &fakeParser{invoice: &models.ExtractedInvoice{InvoiceNumber: "INV-XYZ"}}

	p, dir := testEnv(t, extractor, parser)
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(inbox, 0o755))
	writeFile(t, filepath.Join(inbox, "a.pdf"), "%PDF-1.4 a")
	writeFile(t, filepath.Join(inbox, "b.pdf"), "%PDF-1.4 b")
	writeFile(t, filepath.Join(inbox, "notes.txt"), "not a pdf")

	results, err := p.ProcessBatch(context.Background(), inbox)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Second run: nothing new.
	results, err = p.ProcessBatch(context.Background(), inbox)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFillComputedTotals(t *testing.T) {
	inv := &models.ExtractedInvoice{LineItems: []models.LineItem{
		{Quantity: f64(3), UnitPrice: f64(9.99)},
		{Quantity: f64(10), UnitPrice: f64(5), Discount: f64(0.10)},
		{Quantity: f64(2), UnitPrice: f64(4), Total: f64(100)}, // stated total wins
		{Quantity: f64(2)}, // missing price, left alone
	}}

	fillComputedTotals(inv)

	require.NotNil(t, inv.LineItems[0].Total)
	assert.Equal(t, 29.97, *inv.LineItems[0].Total)
	assert.True(t, inv.LineItems[0].TotalComputed)

	require.NotNil(t, inv.LineItems[1].Total)
	assert.Equal(t, 45.0, *inv.LineItems[1].Total)

	assert.Equal(t, 100.0, *inv.LineItems[2].Total)
	assert.False(t, inv.LineItems[2].TotalComputed)

	assert.Nil(t, inv.LineItems[3].Total)
}

func discTypes(discs []models.Discrepancy) []string {
	types := make([]string, 0, len(discs))
	for _, d := range discs {
		types = append(types, d.Type)
	}
	return types
}

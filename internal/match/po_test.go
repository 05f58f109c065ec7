package match

import (
	"os"
	"path/filepath"
	"testing"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicepipe/internal/refdata"
	"invoicepipe/pkg/models"
)

func f64(v float64) *float64 { return &v }

func loadPOIndex(t *testing.T, headersCSV, linesCSV string) *refdata.POIndex {
	t.Helper()
	dir := t.TempDir()
	poPath := filepath.Join(dir, "purchase_orders.csv")
	linesPath := filepath.Join(dir, "po_lines.csv")
	require.NoError(t, os.WriteFile(poPath, []byte(headersCSV), 0o644))
	require.NoError(t, os.WriteFile(linesPath, []byte(linesCSV), 0o644))
	idx, err := refdata.LoadPOIndex(poPath, linesPath)
	require.NoError(t, err)
	return idx
}

func testPOIndex(t *testing.T) *refdata.POIndex {
	return loadPOIndex(t,
		`po_number,supplier_id,supplier_name,subtotal,tax_amount,total,currency,status
PO-1001,SUP-001,Acme Pty Ltd,100.00,10.00,110.00,AUD,open
`,
		`po_number,line_number,sku,description,quantity,unit,unit_price,total
PO-1001,1,WID-001,Widget,10,ea,5.00,50.00
PO-1001,2,,Widget Pro,2,ea,25.00,50.00
`)
}

func TestMatchNoPOReference(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	assert.Nil(t, m.Match(idx, &models.ExtractedInvoice{}))
}

func TestMatchPOReferencedButMissing(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	got := m.Match(idx, &models.ExtractedInvoice{PONumber: "PO-9999"})
	require.NotNil(t, got)
	assert.Equal(t, "PO-9999", got.PONumber)
	assert.Equal(t, models.MatchMethodInvoiceReference, got.MatchMethod)
	assert.Nil(t, got.PoTotal)
	assert.False(t, got.Found())
	assert.Empty(t, got.LineMatches)
}

func TestMatchPOCaseInsensitiveLookup(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	got := m.Match(idx, &models.ExtractedInvoice{PONumber: " po-1001 "})
	require.NotNil(t, got)
	assert.True(t, got.Found())
	assert.Equal(t, "PO-1001", got.PONumber)
	require.NotNil(t, got.PoTotal)
	assert.Equal(t, 110.0, *got.PoTotal)
	assert.Equal(t, "Acme Pty Ltd", got.POSupplierName)
}

func TestMatchLinesSKUBeatsFuzzy(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	// The description says Widget Pro, but the SKU pins it to line 1.
	inv := &models.ExtractedInvoice{
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			{SKU: "wid-001", Description: "Widget Pro", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 1)
	lm := got.LineMatches[0]
	assert.True(t, lm.Matched)
	require.NotNil(t, lm.POLineNumber)
	assert.Equal(t, 1, *lm.POLineNumber)
	assert.Equal(t, "Widget", lm.PODescription)
	assert.Equal(t, 1.0, lm.MatchScore)
}

func TestMatchLinesGreedyOrderDependence(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	// Invoice line 0 ("Widget") consumes PO line 1 exactly. Line 1
	// ("Widget Pro") then gets PO line 2. Reversing the invoice order
	// would pair them differently; the greedy pass never revisits.
	inv := &models.ExtractedInvoice{
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			{Description: "Widget", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
			{Description: "Widget Pro", Quantity: f64(2), UnitPrice: f64(25.00), Total: f64(50.00)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 2)
	require.NotNil(t, got.LineMatches[0].POLineNumber)
	assert.Equal(t, 1, *got.LineMatches[0].POLineNumber)
	require.NotNil(t, got.LineMatches[1].POLineNumber)
	assert.Equal(t, 2, *got.LineMatches[1].POLineNumber)
	assert.Empty(t, got.UnmatchedInvoiceLines)
	assert.Empty(t, got.UnmatchedPOLines)
}

func TestMatchLinesGreedyStarvesLaterLine(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := loadPOIndex(t,
		`po_number,supplier_id,supplier_name,total,currency
PO-1003,SUP-001,Acme Pty Ltd,100.00,AUD
`,
		`po_number,line_number,sku,description,quantity,unit,unit_price,total
PO-1003,1,,Widget Pro,10,ea,5.00,50.00
PO-1003,2,,Widget Pro Max,5,ea,10.00,50.00
`)

	// Both invoice lines score highest against PO line 1. The first
	// consumes it; the second must settle for line 2 even though line 1
	// would score better. Without the consumed-line exclusion both would
	// land on line 1.
	inv := &models.ExtractedInvoice{
		PONumber: "PO-1003",
		LineItems: []models.LineItem{
			{Description: "Widget Pro", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
			{Description: "Widget Pro", Quantity: f64(5), UnitPrice: f64(10.00), Total: f64(50.00)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 2)

	first := got.LineMatches[0]
	require.NotNil(t, first.POLineNumber)
	assert.Equal(t, 1, *first.POLineNumber)
	assert.Equal(t, 1.0, first.MatchScore)

	second := got.LineMatches[1]
	assert.True(t, second.Matched)
	require.NotNil(t, second.POLineNumber)
	assert.Equal(t, 2, *second.POLineNumber)
	assert.Less(t, second.MatchScore, 1.0)

	assert.Empty(t, got.UnmatchedInvoiceLines)
	assert.Empty(t, got.UnmatchedPOLines)
}

func TestMatchLinesUnmatchedBothSides(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	inv := &models.ExtractedInvoice{
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			{Description: "Widget", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
			{Description: "Emergency call-out fee", Total: f64(150.00)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 2)

	assert.True(t, got.LineMatches[0].Matched)
	assert.False(t, got.LineMatches[1].Matched)
	assert.Equal(t, []int{1}, got.UnmatchedInvoiceLines)

	// PO line 2 (Widget Pro) was never consumed.
	assert.Equal(t, []int{2}, got.UnmatchedPOLines)
}

func TestMatchLinesQuantityAndPriceChecks(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := testPOIndex(t)

	inv := &models.ExtractedInvoice{
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			// Over-delivered quantity, price within 1%, total off by > 0.05.
			{SKU: "WID-001", Description: "Widget", Quantity: f64(12), UnitPrice: f64(5.04), Total: f64(60.48)},
			// No numbers extracted at all: every check stays nil.
			{Description: "Widget Pro"},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 2)

	first := got.LineMatches[0]
	require.NotNil(t, first.QuantityMatches)
	assert.False(t, *first.QuantityMatches)
	require.NotNil(t, first.PriceMatches)
	assert.True(t, *first.PriceMatches)
	require.NotNil(t, first.TotalMatches)
	assert.False(t, *first.TotalMatches)

	second := got.LineMatches[1]
	assert.True(t, second.Matched)
	assert.Nil(t, second.QuantityMatches)
	assert.Nil(t, second.PriceMatches)
	assert.Nil(t, second.TotalMatches)
}

func TestMatchLinesZeroPOPriceRequiresExactZero(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := loadPOIndex(t,
		`po_number,supplier_id,supplier_name,total,currency
PO-2001,SUP-001,Acme Pty Ltd,0.00,AUD
`,
		`po_number,line_number,sku,description,quantity,unit,unit_price,total
PO-2001,1,,Free sample pack,1,ea,0.00,0.00
`)

	inv := &models.ExtractedInvoice{
		PONumber: "PO-2001",
		LineItems: []models.LineItem{
			{Description: "Free sample pack", Quantity: f64(1), UnitPrice: f64(0.01), Total: f64(0.01)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 1)
	require.NotNil(t, got.LineMatches[0].PriceMatches)
	assert.False(t, *got.LineMatches[0].PriceMatches)
}

func TestMatchLinesFuzzyThreshold(t *testing.T) {
	strict := NewPOMatcher(POMatcherConfig{FuzzyThreshold: 95})
	idx := testPOIndex(t)

	inv := &models.ExtractedInvoice{
		PONumber: "PO-1001",
		LineItems: []models.LineItem{
			{Description: "Widgets (carton)", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
		},
	}

	got := strict.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 1)
	assert.False(t, got.LineMatches[0].Matched)
	assert.Equal(t, []int{0}, got.UnmatchedInvoiceLines)
}

func TestMatchLinesFuzzyThresholdBoundary(t *testing.T) {
	idx := loadPOIndex(t,
		`po_number,supplier_id,supplier_name,total,currency
PO-1004,SUP-001,Acme Pty Ltd,50.00,AUD
`,
		`po_number,line_number,sku,description,quantity,unit,unit_price,total
PO-1004,1,,Widget,10,ea,5.00,50.00
`)
	inv := &models.ExtractedInvoice{
		PONumber: "PO-1004",
		LineItems: []models.LineItem{
			{Description: "Widgets (carton)", Quantity: f64(10), UnitPrice: f64(5.00), Total: f64(50.00)},
		},
	}

	// Pin the score the matcher will compute for the only candidate pair.
	score := fuzzy.TokenSortRatio("widgets (carton)", "widget")
	require.Greater(t, score, 0)
	require.Less(t, score, 100)

	// A score exactly at the threshold is accepted.
	at := NewPOMatcher(POMatcherConfig{FuzzyThreshold: score})
	got := at.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 1)
	assert.True(t, got.LineMatches[0].Matched)
	assert.Equal(t, float64(score)/100.0, got.LineMatches[0].MatchScore)

	// One point higher rejects the same pair.
	above := NewPOMatcher(POMatcherConfig{FuzzyThreshold: score + 1})
	got = above.Match(idx, inv)
	require.NotNil(t, got)
	require.Len(t, got.LineMatches, 1)
	assert.False(t, got.LineMatches[0].Matched)
	assert.Equal(t, []int{0}, got.UnmatchedInvoiceLines)
}

func TestMatchPOWithoutLines(t *testing.T) {
	m := NewPOMatcher(POMatcherConfig{})
	idx := loadPOIndex(t,
		`po_number,supplier_id,supplier_name,total,currency
PO-3001,SUP-001,Acme Pty Ltd,500.00,AUD
`, "po_number,description\n")

	inv := &models.ExtractedInvoice{
		PONumber: "PO-3001",
		LineItems: []models.LineItem{
			{Description: "Something", Total: f64(500.00)},
		},
	}

	got := m.Match(idx, inv)
	require.NotNil(t, got)
	assert.True(t, got.Found())
	assert.Empty(t, got.LineMatches)
	assert.Equal(t, []int{0}, got.UnmatchedInvoiceLines)
	assert.Empty(t, got.UnmatchedPOLines)
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInvoiceJSON_Clean(t *testing.T) {
	raw := `{"invoice_number": "INV-001", "total": 110.0, "supplier": {"name": "Acme Pty Ltd"}}`

	inv, err := DecodeInvoiceJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-001", inv.InvoiceNumber)
	require.NotNil(t, inv.Total)
	assert.Equal(t, 110.0, *inv.Total)
	require.NotNil(t, inv.Supplier)
	assert.Equal(t, "Acme Pty Ltd", inv.Supplier.Name)
}

func TestDecodeInvoiceJSON_CodeFences(t *testing.T) {
	raw := "```json\n{\"invoice_number\": \"INV-002\"}\n```"

	inv, err := DecodeInvoiceJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-002", inv.InvoiceNumber)
}

func TestDecodeInvoiceJSON_SurroundingProse(t *testing.T) {
	raw := `Here is the extracted data:
{"invoice_number": "INV-003", "po_number": "PO-9"}
Let me know if you need anything else.`

	inv, err := DecodeInvoiceJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-003", inv.InvoiceNumber)
	assert.Equal(t, "PO-9", inv.PONumber)
}

func TestDecodeInvoiceJSON_TrailingCommas(t *testing.T) {
	raw := `{"invoice_number": "INV-004", "line_items": [{"description": "Widget",},],}`

	inv, err := DecodeInvoiceJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-004", inv.InvoiceNumber)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "Widget", inv.LineItems[0].Description)
}

func TestDecodeInvoiceJSON_NullVsZeroTotal(t *testing.T) {
	inv, err := DecodeInvoiceJSON(`{"total": null}`)
	require.NoError(t, err)
	assert.Nil(t, inv.Total)

	inv, err = DecodeInvoiceJSON(`{"total": 0}`)
	require.NoError(t, err)
	require.NotNil(t, inv.Total)
	assert.Equal(t, 0.0, *inv.Total)
}

func TestDecodeInvoiceJSON_NoJSON(t *testing.T) {
	_, err := DecodeInvoiceJSON("I could not process this document.")
	assert.Error(t, err)
}

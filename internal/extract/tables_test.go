package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLineItems_StandardTable(t *testing.T) {
	tables := []Table{
		{
			Headers: []string{"Item Code", "Description", "Qty", "Unit Price", "Total"},
			Rows: [][]string{
				{"WID-001", "Widget", "10", "$5.00", "$50.00"},
				{"GAD-002", "Gadget Pro", "2", "$120.00", "$240.00"},
			},
		},
	}

	items := TableLineItems(tables)
	require.Len(t, items, 2)

	assert.Equal(t, "WID-001", items[0].SKU)
	assert.Equal(t, "Widget", items[0].Description)
	require.NotNil(t, items[0].Quantity)
	assert.Equal(t, 10.0, *items[0].Quantity)
	require.NotNil(t, items[0].UnitPrice)
	assert.Equal(t, 5.0, *items[0].UnitPrice)
	require.NotNil(t, items[0].Total)
	assert.Equal(t, 50.0, *items[0].Total)
	require.NotNil(t, items[0].LineNumber)
	assert.Equal(t, 1, *items[0].LineNumber)

	assert.Equal(t, "Gadget Pro", items[1].Description)
	require.NotNil(t, items[1].LineNumber)
	assert.Equal(t, 2, *items[1].LineNumber)
}

func TestTableLineItems_PicksBestTable(t *testing.T) {
	tables := []Table{
		{
			// Address block styled as a table; should not win.
			Headers: []string{"Bill To", "Ship To"},
			Rows:    [][]string{{"Acme Corp", "Acme Warehouse"}},
		},
		{
			Headers: []string{"Description", "Quantity", "Rate", "Amount"},
			Rows: [][]string{
				{"Consulting services", "8", "150.00", "1200.00"},
			},
		},
	}

	items := TableLineItems(tables)
	require.Len(t, items, 1)
	assert.Equal(t, "Consulting services", items[0].Description)
	require.NotNil(t, items[0].Total)
	assert.Equal(t, 1200.0, *items[0].Total)
}

func TestTableLineItems_NoSuitableTable(t *testing.T) {
	tables := []Table{
		{
			Headers: []string{"Notes", "Reference"},
			Rows:    [][]string{{"Thank you", "INV-1"}},
		},
	}
	assert.Nil(t, TableLineItems(tables))
	assert.Nil(t, TableLineItems(nil))
}

func TestTableLineItems_FiltersSummaryRows(t *testing.T) {
	tables := []Table{
		{
			Headers: []string{"Description", "Qty", "Price", "Total"},
			Rows: [][]string{
				{"Widget", "10", "5.00", "50.00"},
				{"Subtotal", "", "", "50.00"},
				{"", "", "", ""},
			},
		},
	}

	items := TableLineItems(tables)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Description)
}

func TestTableLineItems_StackedRow(t *testing.T) {
	tables := []Table{
		{
			Headers: []string{"Description", "Qty", "Unit Price", "Total"},
			Rows: [][]string{
				{"Widget\nGadget", "10\n2", "5.00\n120.00", "50.00\n240.00"},
			},
		},
	}

	items := TableLineItems(tables)
	require.Len(t, items, 2)
	assert.Equal(t, "Widget", items[0].Description)
	assert.Equal(t, "Gadget", items[1].Description)
	require.NotNil(t, items[1].Total)
	assert.Equal(t, 240.0, *items[1].Total)
}

func TestTableLineItems_CompositeHeaders(t *testing.T) {
	tables := []Table{
		{
			Headers: []string{"Item Description / Labour Description", "Delivered Quantity/Hours", "Rate", "Net Amount"},
			Rows: [][]string{
				{"Site works", "3", "400.00", "1200.00"},
			},
		},
	}

	items := TableLineItems(tables)
	require.Len(t, items, 1)
	assert.Equal(t, "Site works", items[0].Description)
	require.NotNil(t, items[0].Quantity)
	assert.Equal(t, 3.0, *items[0].Quantity)
}

func TestParseCellNumber(t *testing.T) {
	v := parseCellNumber("$1,234.56")
	require.NotNil(t, v)
	assert.Equal(t, 1234.56, *v)

	v = parseCellNumber("-42")
	require.NotNil(t, v)
	assert.Equal(t, -42.0, *v)

	assert.Nil(t, parseCellNumber("n/a"))
	assert.Nil(t, parseCellNumber(""))
}

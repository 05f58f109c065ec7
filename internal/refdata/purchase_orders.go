package refdata

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// POIndex is an immutable snapshot of the purchase order reference data,
// keyed by upper-cased PO number.
type POIndex struct {
	orders map[string]*models.PurchaseOrder
	count  int
}

// Get returns the PO for the given number (case-insensitive), or nil.
func (idx *POIndex) Get(poNumber string) *models.PurchaseOrder {
	if idx == nil {
		return nil
	}
	return idx.orders[strings.ToUpper(strings.TrimSpace(poNumber))]
}

// Len returns the number of loaded purchase orders.
func (idx *POIndex) Len() int {
	if idx == nil {
		return 0
	}
	return idx.count
}

// LoadPOIndex reads PO headers and PO line items from two CSV files.
//
// Header columns: po_number, supplier_id, supplier_name, issue_date,
// expected_delivery, subtotal, tax_amount, total, currency, status, notes.
// Line columns: po_number, line_number, sku, description, quantity, unit,
// unit_price, total.
//
// A missing headers file yields an empty index (PO matching disabled).
// A missing lines file only disables line reconciliation. A line
// referencing an unknown PO number is dropped with a warning - a PO is
// never fabricated from its lines.
func LoadPOIndex(poPath, linesPath string) (*POIndex, error) {
	const op = "LoadPOIndex"
	log := logger.WithComponent("refdata")

	idx := &POIndex{orders: make(map[string]*models.PurchaseOrder)}

	headerFile, err := os.Open(poPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", poPath).Msg("PO CSV not found - PO matching disabled")
			return idx, nil
		}
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, poPath, err)
	}
	rows, err := readCSV(headerFile)
	headerFile.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse %s: %w", op, poPath, err)
	}

	for i, row := range rows {
		poNumber := strings.TrimSpace(row["po_number"])
		if poNumber == "" {
			logSkippedRow(log, poPath, i+2, "missing po_number")
			continue
		}
		po := &models.PurchaseOrder{
			PONumber:         poNumber,
			SupplierID:       strings.TrimSpace(row["supplier_id"]),
			SupplierName:     strings.TrimSpace(row["supplier_name"]),
			IssueDate:        strings.TrimSpace(row["issue_date"]),
			ExpectedDelivery: strings.TrimSpace(row["expected_delivery"]),
			Subtotal:         parseAmount(row["subtotal"]),
			TaxAmount:        parseAmount(row["tax_amount"]),
			Total:            parseAmount(row["total"]),
			Currency:         strings.TrimSpace(row["currency"]),
			Status:           strings.TrimSpace(row["status"]),
			Notes:            strings.TrimSpace(row["notes"]),
		}
		idx.orders[strings.ToUpper(poNumber)] = po
		idx.count++
	}

	if err := idx.loadLines(linesPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	withLines := 0
	for _, po := range idx.orders {
		if len(po.LineItems) > 0 {
			withLines++
		}
	}
	log.Info().
		Int("purchase_orders", idx.count).
		Int("with_line_items", withLines).
		Str("path", poPath).
		Msg("Purchase order reference data loaded")

	return idx, nil
}

func (idx *POIndex) loadLines(linesPath string) error {
	log := logger.WithComponent("refdata")

	f, err := os.Open(linesPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", linesPath).Msg("No PO lines CSV found - line reconciliation skipped")
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", linesPath, err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", linesPath, err)
	}

	for i, row := range rows {
		key := strings.ToUpper(strings.TrimSpace(row["po_number"]))
		po, ok := idx.orders[key]
		if !ok {
			log.Warn().Str("po_number", key).Int("row", i+2).Msg("PO line references unknown PO, dropping")
			continue
		}
		line, err := parsePOLineRow(row)
		if err != nil {
			logSkippedRow(log, linesPath, i+2, err.Error())
			continue
		}
		po.LineItems = append(po.LineItems, line)
	}
	return nil
}

func parsePOLineRow(row map[string]string) (models.POLineItem, error) {
	description := strings.TrimSpace(row["description"])
	if description == "" {
		return models.POLineItem{}, fmt.Errorf("po line missing description")
	}

	quantity, err := strconv.ParseFloat(strings.TrimSpace(row["quantity"]), 64)
	if err != nil {
		return models.POLineItem{}, fmt.Errorf("unparseable quantity %q", row["quantity"])
	}
	unitPrice, err := strconv.ParseFloat(strings.TrimSpace(row["unit_price"]), 64)
	if err != nil {
		return models.POLineItem{}, fmt.Errorf("unparseable unit_price %q", row["unit_price"])
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(row["total"]), 64)
	if err != nil {
		return models.POLineItem{}, fmt.Errorf("unparseable total %q", row["total"])
	}

	line := models.POLineItem{
		SKU:         strings.TrimSpace(row["sku"]),
		Description: description,
		Quantity:    quantity,
		Unit:        strings.TrimSpace(row["unit"]),
		UnitPrice:   unitPrice,
		Total:       total,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(row["line_number"])); err == nil && n > 0 {
		line.LineNumber = &n
	}
	return line, nil
}

// parseAmount converts a CSV money field to a float, tolerating currency
// symbols and thousands separators. Empty or unparseable values are nil.
func parseAmount(s string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

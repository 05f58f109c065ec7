package models

// POLineItem is a single line item on a purchase order. Unlike invoice
// lines these come from reference data, so the numeric fields are
// required values.
type POLineItem struct {
	LineNumber  *int    `json:"line_number,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// PurchaseOrder is a PO loaded from the reference data source.
// PONumber is the key invoices are reconciled against.
type PurchaseOrder struct {
	PONumber         string       `json:"po_number"`
	SupplierID       string       `json:"supplier_id,omitempty"`
	SupplierName     string       `json:"supplier_name,omitempty"`
	IssueDate        string       `json:"issue_date,omitempty"`
	ExpectedDelivery string       `json:"expected_delivery,omitempty"`
	Subtotal         *float64     `json:"subtotal,omitempty"`
	TaxAmount        *float64     `json:"tax_amount,omitempty"`
	Total            *float64     `json:"total,omitempty"`
	Currency         string       `json:"currency,omitempty"`
	Status           string       `json:"status,omitempty"` // e.g. "open", "partially_received", "closed"
	Notes            string       `json:"notes,omitempty"`
	LineItems        []POLineItem `json:"line_items,omitempty"`
}

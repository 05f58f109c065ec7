package models

// SupplierInfo holds supplier details as they appear on the invoice.
// Every field is optional: extraction is best-effort and the pipeline
// must never assume a field is present.
type SupplierInfo struct {
	Name      string `json:"name,omitempty"`
	TaxID     string `json:"tax_id,omitempty"`     // business registration number, any punctuation
	CompanyID string `json:"company_id,omitempty"` // secondary registration number if the jurisdiction has one
	Address   string `json:"address,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
}

// BillToInfo holds the bill-to / customer details extracted from the invoice.
type BillToInfo struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// LineItem is a single line on an invoice. Numeric fields are pointers so
// that "not extracted" is distinguishable from an extracted zero.
type LineItem struct {
	LineNumber    *int     `json:"line_number,omitempty"`
	SKU           string   `json:"sku,omitempty"`
	Description   string   `json:"description,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Unit          string   `json:"unit,omitempty"` // e.g. "ea", "hr", "kg"
	UnitPrice     *float64 `json:"unit_price,omitempty"`
	Discount      *float64 `json:"discount,omitempty"` // decimal fraction, 0.10 = 10%
	Total         *float64 `json:"total,omitempty"`
	TotalComputed bool     `json:"total_computed,omitempty"` // true when Total was derived from qty × price
}

// ExtractedInvoice is the structured invoice candidate produced by the
// extraction and LLM stages. All monetary values are in the invoice
// currency; dates are strings as found on the document (parsed leniently
// downstream).
type ExtractedInvoice struct {
	InvoiceNumber string `json:"invoice_number,omitempty"`
	InvoiceDate   string `json:"invoice_date,omitempty"` // preferably YYYY-MM-DD
	DueDate       string `json:"due_date,omitempty"`

	Supplier *SupplierInfo `json:"supplier,omitempty"`
	BillTo   *BillToInfo   `json:"bill_to,omitempty"`

	PONumber  string `json:"po_number,omitempty"` // purchase order reference if present
	Reference string `json:"reference,omitempty"` // other reference numbers (order ref, job no.)

	LineItems []LineItem `json:"line_items"`

	Subtotal     *float64 `json:"subtotal,omitempty"`      // pre-tax total
	TaxRate      *float64 `json:"tax_rate,omitempty"`      // e.g. 0.10 for 10%
	TaxAmount    *float64 `json:"tax_amount,omitempty"`    // tax in currency units
	Shipping     *float64 `json:"shipping,omitempty"`      // freight if itemised separately
	OtherCharges *float64 `json:"other_charges,omitempty"` // any other additional charges
	Total        *float64 `json:"total,omitempty"`         // grand total payable

	Currency     string `json:"currency,omitempty"`
	PaymentTerms string `json:"payment_terms,omitempty"` // e.g. "Net 30"
	BankDetails  string `json:"bank_details,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// SupplierName returns the extracted supplier name, or "" when no
// supplier block was extracted at all.
func (inv *ExtractedInvoice) SupplierName() string {
	if inv.Supplier == nil {
		return ""
	}
	return inv.Supplier.Name
}

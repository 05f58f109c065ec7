package models

// Severity labels attached to discrepancies. They are routing policy, not
// control flow: validation always runs every rule group to completion.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Discrepancy type tags produced by the validation rule groups.
const (
	// Arithmetic / totals
	DiscLineItemsSubtotalMismatch = "line_items_subtotal_mismatch"
	DiscTaxCalculationMismatch    = "tax_calculation_mismatch"
	DiscGrandTotalMismatch        = "grand_total_mismatch"

	// Dates
	DiscInvoiceDateFuture    = "invoice_date_future"
	DiscInvoiceDateTooOld    = "invoice_date_too_old"
	DiscDueDateBeforeInvoice = "due_date_before_invoice"
	DiscInvoiceOverdue       = "invoice_overdue"

	// PO matching
	DiscPONotFound             = "po_not_found"
	DiscPOSupplierMismatch     = "po_supplier_mismatch"
	DiscPOTotalExceeded        = "po_total_exceeded"
	DiscPOLineNotFound         = "po_line_not_found"
	DiscPOLineQuantityMismatch = "po_line_quantity_mismatch"
	DiscPOLinePriceMismatch    = "po_line_price_mismatch"
	DiscPOLineTotalMismatch    = "po_line_total_mismatch"

	// Supplier
	DiscSupplierNotFound = "supplier_not_found"

	// Data quality
	DiscMissingInvoiceNumber = "missing_invoice_number"
	DiscMissingInvoiceDate   = "missing_invoice_date"
	DiscMissingSupplierName  = "missing_supplier_name"
	DiscMissingTotal         = "missing_total"
	DiscMissingLineItems     = "missing_line_items"
	DiscNegativeAmount       = "negative_amount"
	DiscZeroTotal            = "zero_total"
)

// Supplier match methods, in strategy priority order.
const (
	MatchMethodTaxIDExact       = "id_exact"
	MatchMethodNameExact        = "name_exact"
	MatchMethodNameFuzzy        = "name_fuzzy"
	MatchMethodEmailDomain      = "email_domain"
	MatchMethodOperatorOverride = "operator_override"
)

// MatchMethodInvoiceReference tags a PO match made via the PO number
// printed on the invoice. Used for both found and referenced-but-missing
// POs; PoTotal == nil is what distinguishes the two.
const MatchMethodInvoiceReference = "invoice_reference"

// Discrepancy is a single typed, severity-tagged finding. Discrepancies
// are pure outputs: they never mutate the invoice or the match results.
type Discrepancy struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
	Field         string `json:"field,omitempty"`
	InvoiceValue  string `json:"invoice_value,omitempty"`
	ExpectedValue string `json:"expected_value,omitempty"`
	POLineNumber  *int   `json:"po_line_number,omitempty"`
}

// POLineMatch records the outcome of matching one invoice line against a
// PO line. The three *bool checks are tri-state: nil means the invoice
// side did not carry a value to compare.
type POLineMatch struct {
	InvoiceLineIndex   int     `json:"invoice_line_index"`
	InvoiceDescription string  `json:"invoice_description,omitempty"`
	POLineNumber       *int    `json:"po_line_number,omitempty"`
	PODescription      string  `json:"po_description,omitempty"`
	MatchScore         float64 `json:"match_score"` // 0-1
	Matched            bool    `json:"matched"`
	QuantityMatches    *bool   `json:"quantity_matches,omitempty"`
	PriceMatches       *bool   `json:"price_matches,omitempty"`
	TotalMatches       *bool   `json:"total_matches,omitempty"`
}

// MatchedPO is the purchase order resolved for an invoice.
//
// A nil *MatchedPO means the invoice carried no PO reference at all.
// A MatchedPO with PoTotal == nil means the invoice referenced a PO that
// is not in the index. Callers must preserve this two-level distinction.
type MatchedPO struct {
	PONumber              string        `json:"po_number"`
	MatchMethod           string        `json:"match_method"`
	PoTotal               *float64      `json:"po_total,omitempty"`
	POSupplierName        string        `json:"po_supplier_name,omitempty"`
	POSupplierID          string        `json:"po_supplier_id,omitempty"`
	LineMatches           []POLineMatch `json:"line_matches,omitempty"`
	UnmatchedInvoiceLines []int         `json:"unmatched_invoice_lines,omitempty"` // invoice line indices
	UnmatchedPOLines      []int         `json:"unmatched_po_lines,omitempty"`      // PO line numbers
}

// Found reports whether the referenced PO exists in the index.
func (m *MatchedPO) Found() bool {
	return m != nil && m.PoTotal != nil
}

// MatchedSupplier is the master-list supplier resolved for an invoice.
// Created once per processing pass; immutable afterwards except for an
// explicit operator override.
type MatchedSupplier struct {
	SupplierID   string            `json:"supplier_id"`
	SupplierName string            `json:"supplier_name"`
	MatchMethod  string            `json:"match_method"`
	Confidence   float64           `json:"confidence"` // 0-1
	TaxID        string            `json:"tax_id,omitempty"`
	MatchedOn    map[string]string `json:"matched_on,omitempty"` // which field/value decided the match
}

// ProcessingResult is the complete output of processing one invoice and
// the record persisted as the system of record. It is fully
// self-contained: nothing here references the live reference indexes.
type ProcessingResult struct {
	ID                    string  `json:"id"`
	SourceFile            string  `json:"source_file"`
	ProcessedAt           string  `json:"processed_at"` // RFC 3339
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`

	ExtractedInvoice ExtractedInvoice `json:"extracted_invoice"`
	RawTextLength    int              `json:"raw_text_length"`
	LLMModelUsed     string           `json:"llm_model_used,omitempty"`

	MatchedSupplier *MatchedSupplier `json:"matched_supplier,omitempty"`
	MatchedPO       *MatchedPO       `json:"matched_po,omitempty"`

	Discrepancies []Discrepancy `json:"discrepancies"`

	RequiresReview bool     `json:"requires_review"`
	ReviewReasons  []string `json:"review_reasons,omitempty"`
	ErrorCount     int      `json:"error_count"`
	WarningCount   int      `json:"warning_count"`
}

// ComputeSummary populates the derived summary fields from the
// discrepancy list. RequiresReview is true whenever at least one error-
// or warning-severity discrepancy exists.
func (r *ProcessingResult) ComputeSummary() {
	r.ErrorCount = 0
	r.WarningCount = 0
	r.ReviewReasons = nil

	seen := make(map[string]struct{})
	for _, d := range r.Discrepancies {
		switch d.Severity {
		case SeverityError:
			r.ErrorCount++
		case SeverityWarning:
			r.WarningCount++
		default:
			continue
		}
		if _, ok := seen[d.Description]; !ok {
			seen[d.Description] = struct{}{}
			r.ReviewReasons = append(r.ReviewReasons, d.Description)
		}
	}
	r.RequiresReview = r.ErrorCount > 0 || r.WarningCount > 0
}

// Package validate is the discrepancy detection rule engine. It turns an
// extracted invoice plus its match results into a flat list of typed,
// severity-tagged findings.
//
// The engine is a pure function of its inputs: no I/O, no mutation of
// the invoice or match objects, and the current date is an explicit
// input via the configured clock. Severities are routing policy only -
// every applicable rule in every group fires regardless of what already
// fired, so one invoice can surface many discrepancies at once.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// Default thresholds, overridable via Config.
const (
	DefaultMaxDaysPast         = 90   // warning when the invoice date is older
	DefaultMaxDaysFuture       = 7    // error when the invoice date is further ahead
	DefaultArithmeticTolerance = 0.05 // absolute rounding tolerance for totals

	// poTotalTolerancePct is the relative band for invoice total vs PO total.
	poTotalTolerancePct = 0.01
)

// Config tunes the rule engine thresholds.
type Config struct {
	MaxDaysPast         int
	MaxDaysFuture       int
	ArithmeticTolerance float64

	// Clock supplies "today" for the date rules. Defaults to time.Now;
	// tests inject a fixed clock for determinism.
	Clock func() time.Time
}

// Validator runs the five independent rule groups: data quality,
// arithmetic, dates, supplier, PO.
type Validator struct {
	cfg Config
	log zerolog.Logger
}

// New creates a Validator, filling zero config fields with defaults.
func New(cfg Config) *Validator {
	if cfg.MaxDaysPast == 0 {
		cfg.MaxDaysPast = DefaultMaxDaysPast
	}
	if cfg.MaxDaysFuture == 0 {
		cfg.MaxDaysFuture = DefaultMaxDaysFuture
	}
	if cfg.ArithmeticTolerance == 0 {
		cfg.ArithmeticTolerance = DefaultArithmeticTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Validator{
		cfg: cfg,
		log: logger.WithComponent("validator"),
	}
}

// Validate runs every rule group and returns the combined findings in a
// stable order: data quality, arithmetic, dates, supplier, PO. Within a
// group, line-item rules fire in line order.
func (v *Validator) Validate(
	inv *models.ExtractedInvoice,
	matchedPO *models.MatchedPO,
	matchedSupplier *models.MatchedSupplier,
	poRecord *models.PurchaseOrder,
) []models.Discrepancy {
	var issues []models.Discrepancy
	issues = append(issues, v.checkDataQuality(inv)...)
	issues = append(issues, v.checkArithmetic(inv)...)
	issues = append(issues, v.checkDates(inv)...)
	issues = append(issues, v.checkSupplier(inv, matchedSupplier)...)
	issues = append(issues, v.checkPO(inv, matchedPO, poRecord)...)
	return issues
}

// ---------------------------------------------------------------------
// Data quality
// ---------------------------------------------------------------------

func (v *Validator) checkDataQuality(inv *models.ExtractedInvoice) []models.Discrepancy {
	var issues []models.Discrepancy

	if inv.InvoiceNumber == "" {
		issues = append(issues, models.Discrepancy{
			Type:        models.DiscMissingInvoiceNumber,
			Severity:    models.SeverityWarning,
			Description: "No invoice number found on the invoice",
			Field:       "invoice_number",
		})
	}

	if inv.InvoiceDate == "" {
		issues = append(issues, models.Discrepancy{
			Type:        models.DiscMissingInvoiceDate,
			Severity:    models.SeverityWarning,
			Description: "No invoice date found on the invoice",
			Field:       "invoice_date",
		})
	}

	if inv.SupplierName() == "" {
		issues = append(issues, models.Discrepancy{
			Type:        models.DiscMissingSupplierName,
			Severity:    models.SeverityWarning,
			Description: "No supplier name could be extracted",
			Field:       "supplier.name",
		})
	}

	switch {
	case inv.Total == nil:
		issues = append(issues, models.Discrepancy{
			Type:        models.DiscMissingTotal,
			Severity:    models.SeverityError,
			Description: "No total amount found on the invoice",
			Field:       "total",
		})
	case *inv.Total == 0:
		issues = append(issues, models.Discrepancy{
			Type:         models.DiscZeroTotal,
			Severity:     models.SeverityWarning,
			Description:  "Invoice total is zero",
			Field:        "total",
			InvoiceValue: "0.00",
		})
	case *inv.Total < 0:
		issues = append(issues, models.Discrepancy{
			Type:         models.DiscNegativeAmount,
			Severity:     models.SeverityError,
			Description:  fmt.Sprintf("Invoice total is negative: %.2f", *inv.Total),
			Field:        "total",
			InvoiceValue: formatAmount(*inv.Total),
		})
	}

	if len(inv.LineItems) == 0 {
		issues = append(issues, models.Discrepancy{
			Type:        models.DiscMissingLineItems,
			Severity:    models.SeverityInfo,
			Description: "No line items extracted - arithmetic cross-checks skipped",
			Field:       "line_items",
		})
	}

	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		if item.Total != nil && *item.Total < 0 {
			lineNum := i + 1
			issues = append(issues, models.Discrepancy{
				Type:         models.DiscNegativeAmount,
				Severity:     models.SeverityWarning,
				Description:  fmt.Sprintf("Line item %d has a negative total: %.2f", lineNum, *item.Total),
				Field:        fmt.Sprintf("line_items[%d].total", i),
				InvoiceValue: formatAmount(*item.Total),
				POLineNumber: &lineNum,
			})
		}
	}

	return issues
}

// ---------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------

func (v *Validator) checkArithmetic(inv *models.ExtractedInvoice) []models.Discrepancy {
	var issues []models.Discrepancy
	tol := v.cfg.ArithmeticTolerance

	// Sum of line item totals vs stated subtotal. Only lines that carry a
	// total participate; an invoice with no priced lines is skipped.
	if len(inv.LineItems) > 0 && inv.Subtotal != nil {
		sum := 0.0
		priced := 0
		for i := range inv.LineItems {
			if t := inv.LineItems[i].Total; t != nil {
				sum += *t
				priced++
			}
		}
		if priced > 0 && math.Abs(sum-*inv.Subtotal) > tol {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscLineItemsSubtotalMismatch,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Sum of line items (%.2f) does not match stated subtotal (%.2f)",
					sum, *inv.Subtotal),
				Field:         "subtotal",
				InvoiceValue:  formatAmount(*inv.Subtotal),
				ExpectedValue: formatAmount(sum),
			})
		}
	}

	// Tax amount vs subtotal × rate, only when all three are present.
	if inv.Subtotal != nil && inv.TaxRate != nil && inv.TaxAmount != nil {
		expectedTax := *inv.Subtotal * *inv.TaxRate
		if math.Abs(expectedTax-*inv.TaxAmount) > tol {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscTaxCalculationMismatch,
				Severity: models.SeverityWarning,
				Description: fmt.Sprintf("Tax amount (%.2f) does not match subtotal x rate (%.2f)",
					*inv.TaxAmount, expectedTax),
				Field:         "tax_amount",
				InvoiceValue:  formatAmount(*inv.TaxAmount),
				ExpectedValue: formatAmount(expectedTax),
			})
		}
	}

	// Grand total vs subtotal + tax + shipping + other, absent parts are 0.
	if inv.Total != nil && inv.Subtotal != nil {
		components := *inv.Subtotal
		for _, part := range []*float64{inv.TaxAmount, inv.Shipping, inv.OtherCharges} {
			if part != nil {
				components += *part
			}
		}
		if math.Abs(components-*inv.Total) > tol {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscGrandTotalMismatch,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Grand total (%.2f) does not match sum of components (%.2f)",
					*inv.Total, components),
				Field:         "total",
				InvoiceValue:  formatAmount(*inv.Total),
				ExpectedValue: formatAmount(components),
			})
		}
	}

	return issues
}

// ---------------------------------------------------------------------
// Dates
// ---------------------------------------------------------------------

func (v *Validator) checkDates(inv *models.ExtractedInvoice) []models.Discrepancy {
	var issues []models.Discrepancy
	today := truncateToDay(v.cfg.Clock())

	invDate, hasInvDate := ParseDate(inv.InvoiceDate)
	dueDate, hasDueDate := ParseDate(inv.DueDate)

	if hasInvDate {
		daysAhead := daysBetween(today, invDate)
		daysAgo := daysBetween(invDate, today)

		if daysAhead > v.cfg.MaxDaysFuture {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscInvoiceDateFuture,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Invoice date %s is %d days in the future",
					inv.InvoiceDate, daysAhead),
				Field:         "invoice_date",
				InvoiceValue:  inv.InvoiceDate,
				ExpectedValue: "<= " + today.Format("2006-01-02"),
			})
		}

		if daysAgo > v.cfg.MaxDaysPast {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscInvoiceDateTooOld,
				Severity: models.SeverityWarning,
				Description: fmt.Sprintf("Invoice date %s is %d days in the past (threshold: %d days)",
					inv.InvoiceDate, daysAgo, v.cfg.MaxDaysPast),
				Field:         "invoice_date",
				InvoiceValue:  inv.InvoiceDate,
				ExpectedValue: ">= " + today.AddDate(0, 0, -v.cfg.MaxDaysPast).Format("2006-01-02"),
			})
		}
	}

	if hasDueDate {
		if dueDate.Before(today) {
			issues = append(issues, models.Discrepancy{
				Type:         models.DiscInvoiceOverdue,
				Severity:     models.SeverityWarning,
				Description:  fmt.Sprintf("Invoice due date %s has already passed", inv.DueDate),
				Field:        "due_date",
				InvoiceValue: inv.DueDate,
			})
		}
		if hasInvDate && dueDate.Before(invDate) {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscDueDateBeforeInvoice,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Due date (%s) is before invoice date (%s)",
					inv.DueDate, inv.InvoiceDate),
				Field:         "due_date",
				InvoiceValue:  inv.DueDate,
				ExpectedValue: ">= " + inv.InvoiceDate,
			})
		}
	}

	return issues
}

// ---------------------------------------------------------------------
// Supplier
// ---------------------------------------------------------------------

// checkSupplier fires only when a supplier name was extracted but no
// match was found. An invoice with no extracted name is "unidentified",
// not "unmatched", and gets no finding here (data quality already
// covers the missing name).
func (v *Validator) checkSupplier(inv *models.ExtractedInvoice, matched *models.MatchedSupplier) []models.Discrepancy {
	if matched != nil || inv.SupplierName() == "" {
		return nil
	}
	return []models.Discrepancy{{
		Type:     models.DiscSupplierNotFound,
		Severity: models.SeverityWarning,
		Description: fmt.Sprintf("Supplier '%s' could not be matched to the supplier list",
			inv.Supplier.Name),
		Field:        "supplier.name",
		InvoiceValue: inv.Supplier.Name,
	}}
}

// ---------------------------------------------------------------------
// Purchase order
// ---------------------------------------------------------------------

func (v *Validator) checkPO(
	inv *models.ExtractedInvoice,
	matchedPO *models.MatchedPO,
	poRecord *models.PurchaseOrder,
) []models.Discrepancy {
	if inv.PONumber == "" || matchedPO == nil {
		return nil // no PO reference on the invoice, nothing to check
	}

	// Referenced but not found: one error and stop. No line checks can be
	// meaningful against a PO that does not exist.
	if poRecord == nil {
		return []models.Discrepancy{{
			Type:         models.DiscPONotFound,
			Severity:     models.SeverityError,
			Description:  fmt.Sprintf("Invoice references PO '%s' which was not found", inv.PONumber),
			Field:        "po_number",
			InvoiceValue: inv.PONumber,
		}}
	}

	var issues []models.Discrepancy

	if matchedPO.POSupplierName != "" && inv.SupplierName() != "" &&
		!strings.EqualFold(inv.Supplier.Name, matchedPO.POSupplierName) {
		issues = append(issues, models.Discrepancy{
			Type:     models.DiscPOSupplierMismatch,
			Severity: models.SeverityWarning,
			Description: fmt.Sprintf("Invoice supplier '%s' differs from PO supplier '%s'",
				inv.Supplier.Name, matchedPO.POSupplierName),
			Field:         "supplier.name",
			InvoiceValue:  inv.Supplier.Name,
			ExpectedValue: matchedPO.POSupplierName,
		})
	}

	if inv.Total != nil && poRecord.Total != nil {
		pctDiff := math.Abs(*inv.Total-*poRecord.Total) / math.Max(*poRecord.Total, 0.01)
		if pctDiff > poTotalTolerancePct {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscPOTotalExceeded,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Invoice total (%.2f) differs from PO total (%.2f) by %.1f%%",
					*inv.Total, *poRecord.Total, pctDiff*100),
				Field:         "total",
				InvoiceValue:  formatAmount(*inv.Total),
				ExpectedValue: formatAmount(*poRecord.Total),
			})
		}
	}

	issues = append(issues, v.checkPOLines(inv, matchedPO, poRecord)...)

	// PO lines nothing on the invoice consumed. Deliberately info, not
	// warning: an absent PO line usually means partial delivery, while an
	// invoice line with no PO backing is a data problem.
	for _, poLineNum := range matchedPO.UnmatchedPOLines {
		n := poLineNum
		issues = append(issues, models.Discrepancy{
			Type:     models.DiscPOLineNotFound,
			Severity: models.SeverityInfo,
			Description: fmt.Sprintf("PO line %d was not found on the invoice (may be a partial delivery)",
				poLineNum),
			Field:         "line_items",
			ExpectedValue: fmt.Sprintf("PO line %d", poLineNum),
			POLineNumber:  &n,
		})
	}

	return issues
}

// checkPOLines walks the per-line match results in invoice line order.
// Quantity mismatches are warnings; price mismatches are errors - price
// drives payment risk, so the severities are deliberately asymmetric.
func (v *Validator) checkPOLines(
	inv *models.ExtractedInvoice,
	matchedPO *models.MatchedPO,
	poRecord *models.PurchaseOrder,
) []models.Discrepancy {
	var issues []models.Discrepancy

	for i := range matchedPO.LineMatches {
		lm := &matchedPO.LineMatches[i]
		if !lm.Matched {
			lineNum := lm.InvoiceLineIndex + 1
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscPOLineNotFound,
				Severity: models.SeverityWarning,
				Description: fmt.Sprintf("Invoice line %d ('%s') has no matching PO line",
					lineNum, lm.InvoiceDescription),
				Field:        fmt.Sprintf("line_items[%d]", lm.InvoiceLineIndex),
				InvoiceValue: lm.InvoiceDescription,
				POLineNumber: &lineNum,
			})
			continue
		}

		invLine := invoiceLineAt(inv, lm.InvoiceLineIndex)
		poLine := poLineByNumber(poRecord, lm.POLineNumber)

		if lm.QuantityMatches != nil && !*lm.QuantityMatches {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscPOLineQuantityMismatch,
				Severity: models.SeverityWarning,
				Description: fmt.Sprintf("Line %d quantity mismatch vs PO line %s",
					lm.InvoiceLineIndex+1, lineNumberLabel(lm.POLineNumber)),
				Field:         fmt.Sprintf("line_items[%d].quantity", lm.InvoiceLineIndex),
				InvoiceValue:  floatPtrString(invLineQuantity(invLine)),
				ExpectedValue: poLineQuantityString(poLine),
				POLineNumber:  lm.POLineNumber,
			})
		}

		if lm.PriceMatches != nil && !*lm.PriceMatches {
			issues = append(issues, models.Discrepancy{
				Type:     models.DiscPOLinePriceMismatch,
				Severity: models.SeverityError,
				Description: fmt.Sprintf("Line %d unit price mismatch vs PO line %s",
					lm.InvoiceLineIndex+1, lineNumberLabel(lm.POLineNumber)),
				Field:         fmt.Sprintf("line_items[%d].unit_price", lm.InvoiceLineIndex),
				InvoiceValue:  floatPtrString(invLineUnitPrice(invLine)),
				ExpectedValue: poLineUnitPriceString(poLine),
				POLineNumber:  lm.POLineNumber,
			})
		}
	}

	return issues
}

// ---------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func invoiceLineAt(inv *models.ExtractedInvoice, idx int) *models.LineItem {
	if idx < 0 || idx >= len(inv.LineItems) {
		return nil
	}
	return &inv.LineItems[idx]
}

func poLineByNumber(po *models.PurchaseOrder, lineNum *int) *models.POLineItem {
	if po == nil || lineNum == nil {
		return nil
	}
	for i := range po.LineItems {
		if po.LineItems[i].LineNumber != nil && *po.LineItems[i].LineNumber == *lineNum {
			return &po.LineItems[i]
		}
	}
	return nil
}

func lineNumberLabel(n *int) string {
	if n == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *n)
}

func invLineQuantity(line *models.LineItem) *float64 {
	if line == nil {
		return nil
	}
	return line.Quantity
}

func invLineUnitPrice(line *models.LineItem) *float64 {
	if line == nil {
		return nil
	}
	return line.UnitPrice
}

func floatPtrString(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f)
}

func poLineQuantityString(line *models.POLineItem) string {
	if line == nil {
		return ""
	}
	return fmt.Sprintf("%g", line.Quantity)
}

func poLineUnitPriceString(line *models.POLineItem) string {
	if line == nil {
		return ""
	}
	return fmt.Sprintf("%g", line.UnitPrice)
}

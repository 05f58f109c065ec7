package match

import (
	"math"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/internal/refdata"
	"invoicepipe/pkg/models"
)

// DefaultPOLineFuzzyThreshold is the minimum token-sort-ratio score
// (0-100) to accept a fuzzy description match between an invoice line
// and a PO line.
const DefaultPOLineFuzzyThreshold = 65

// Numeric comparison tolerances for matched line pairs.
const (
	// QuantityEpsilon treats quantities as equal within this absolute band.
	QuantityEpsilon = 0.001

	// PriceTolerancePct accepts unit prices within this relative band of
	// the PO price. A zero PO price requires an exactly zero invoice price.
	PriceTolerancePct = 0.01

	// TotalToleranceAbs is the absolute rounding tolerance for line totals.
	TotalToleranceAbs = 0.05

	skuExactScore = 100.0
)

// POMatcherConfig tunes PO line reconciliation.
type POMatcherConfig struct {
	// FuzzyThreshold is the minimum token-sort-ratio score (0-100) for
	// description matches.
	FuzzyThreshold int

	// DisableFuzzy turns off fuzzy description scoring.
	DisableFuzzy bool

	// ContainsFallback substitutes substring containment when fuzzy
	// scoring is disabled.
	ContainsFallback bool
}

// POMatcher resolves an invoice PO reference against the PO index and
// reconciles invoice lines with PO lines.
//
// Line matching is greedy and single-pass in invoice line order: once a
// PO line is consumed it is unavailable to later invoice lines, even if
// a later line would score higher against it. That ordering dependence
// is part of the contract - downstream review expectations are
// calibrated to it - so it must not be "upgraded" to an optimal
// assignment.
type POMatcher struct {
	cfg POMatcherConfig
	log zerolog.Logger
}

// NewPOMatcher creates a matcher. A zero FuzzyThreshold gets the default
// of 65.
func NewPOMatcher(cfg POMatcherConfig) *POMatcher {
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = DefaultPOLineFuzzyThreshold
	}
	return &POMatcher{
		cfg: cfg,
		log: logger.WithComponent("po-matcher"),
	}
}

// Match resolves the invoice PO reference.
//
// Returns nil only when the invoice carries no PO reference. When the
// referenced PO is absent from the index the result is a placeholder
// MatchedPO with PoTotal == nil and no line matches: "referenced but not
// found" is a different signal from "no reference" and both levels must
// survive to the validator.
func (m *POMatcher) Match(idx *refdata.POIndex, inv *models.ExtractedInvoice) *models.MatchedPO {
	poNumber := strings.TrimSpace(inv.PONumber)
	if poNumber == "" {
		m.log.Debug().Msg("Invoice has no PO number, skipping PO match")
		return nil
	}

	po := idx.Get(poNumber)
	if po == nil {
		m.log.Info().Str("po_number", poNumber).Msg("PO number not found in loaded purchase orders")
		return &models.MatchedPO{
			PONumber:    poNumber,
			MatchMethod: models.MatchMethodInvoiceReference,
			// PoTotal left nil: referenced but not found
		}
	}

	m.log.Info().Str("po_number", po.PONumber).Msg("Matched invoice PO reference to loaded PO")
	lineMatches, unmatchedInvoice, unmatchedPO := m.matchLines(inv.LineItems, po.LineItems)

	return &models.MatchedPO{
		PONumber:              po.PONumber,
		MatchMethod:           models.MatchMethodInvoiceReference,
		PoTotal:               po.Total,
		POSupplierName:        po.SupplierName,
		POSupplierID:          po.SupplierID,
		LineMatches:           lineMatches,
		UnmatchedInvoiceLines: unmatchedInvoice,
		UnmatchedPOLines:      unmatchedPO,
	}
}

// matchLines pairs each invoice line with the best still-unused PO line.
// Returns the per-line match records, the indices of unmatched invoice
// lines, and the line numbers of PO lines nothing consumed.
func (m *POMatcher) matchLines(invoiceLines []models.LineItem, poLines []models.POLineItem) ([]models.POLineMatch, []int, []int) {
	if len(poLines) == 0 {
		unmatched := make([]int, len(invoiceLines))
		for i := range invoiceLines {
			unmatched[i] = i
		}
		return nil, unmatched, nil
	}

	var matches []models.POLineMatch
	var unmatchedInvoice []int
	used := make(map[int]bool, len(poLines))

	for invIdx := range invoiceLines {
		invLine := &invoiceLines[invIdx]
		poIdx, score := m.findBestPOLine(invLine, poLines, used)
		if poIdx < 0 {
			unmatchedInvoice = append(unmatchedInvoice, invIdx)
			matches = append(matches, models.POLineMatch{
				InvoiceLineIndex:   invIdx,
				InvoiceDescription: invLine.Description,
				Matched:            false,
			})
			continue
		}
		used[poIdx] = true
		matches = append(matches, m.buildLineMatch(invIdx, invLine, poIdx, &poLines[poIdx], score))
	}

	var unmatchedPO []int
	for i := range poLines {
		if !used[i] {
			unmatchedPO = append(unmatchedPO, poLineNumber(&poLines[i], i))
		}
	}

	return matches, unmatchedInvoice, unmatchedPO
}

// findBestPOLine returns the index and score of the best unused PO line
// for an invoice line, or (-1, 0) when nothing qualifies.
//
// A case-insensitive SKU match wins immediately at score 100, regardless
// of what fuzzy scoring would say. Otherwise the single best fuzzy
// description score is taken, accepted only at or above the threshold.
func (m *POMatcher) findBestPOLine(invLine *models.LineItem, poLines []models.POLineItem, used map[int]bool) (int, float64) {
	if sku := strings.TrimSpace(invLine.SKU); sku != "" {
		for i := range poLines {
			if used[i] {
				continue
			}
			if poLines[i].SKU != "" && strings.EqualFold(poLines[i].SKU, sku) {
				return i, skuExactScore
			}
		}
	}

	invDesc := strings.ToLower(strings.TrimSpace(invLine.Description))
	if invDesc == "" {
		return -1, 0
	}

	if m.cfg.DisableFuzzy {
		if !m.cfg.ContainsFallback {
			return -1, 0
		}
		for i := range poLines {
			if used[i] {
				continue
			}
			poDesc := strings.ToLower(poLines[i].Description)
			if strings.Contains(poDesc, invDesc) || strings.Contains(invDesc, poDesc) {
				return i, containsFallbackScore
			}
		}
		return -1, 0
	}

	bestScore := 0
	bestIdx := -1
	for i := range poLines {
		if used[i] {
			continue
		}
		score := fuzzy.TokenSortRatio(invDesc, strings.ToLower(poLines[i].Description))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < m.cfg.FuzzyThreshold {
		return -1, 0
	}
	return bestIdx, float64(bestScore)
}

func (m *POMatcher) buildLineMatch(invIdx int, invLine *models.LineItem, poIdx int, poLine *models.POLineItem, score float64) models.POLineMatch {
	lineNum := poLineNumber(poLine, poIdx)
	return models.POLineMatch{
		InvoiceLineIndex:   invIdx,
		InvoiceDescription: invLine.Description,
		POLineNumber:       &lineNum,
		PODescription:      poLine.Description,
		MatchScore:         math.Round(score*10) / 1000, // score/100 to 3 decimals
		Matched:            true,
		QuantityMatches:    quantityMatches(invLine.Quantity, poLine.Quantity),
		PriceMatches:       priceMatches(invLine.UnitPrice, poLine.UnitPrice),
		TotalMatches:       totalMatches(invLine.Total, poLine.Total),
	}
}

// poLineNumber falls back to 1-based position when the reference data
// carried no explicit line number.
func poLineNumber(poLine *models.POLineItem, idx int) int {
	if poLine.LineNumber != nil {
		return *poLine.LineNumber
	}
	return idx + 1
}

// The three checks below are tri-state: nil when the invoice side never
// carried a value, so "no data" is never reported as a mismatch.

func quantityMatches(invoice *float64, po float64) *bool {
	if invoice == nil {
		return nil
	}
	ok := math.Abs(*invoice-po) <= QuantityEpsilon
	return &ok
}

func priceMatches(invoice *float64, po float64) *bool {
	if invoice == nil {
		return nil
	}
	var ok bool
	if po == 0 {
		ok = *invoice == 0
	} else {
		ok = math.Abs(*invoice-po)/po <= PriceTolerancePct
	}
	return &ok
}

func totalMatches(invoice *float64, po float64) *bool {
	if invoice == nil {
		return nil
	}
	ok := math.Abs(*invoice-po) <= TotalToleranceAbs
	return &ok
}

// Package match resolves extracted invoice data against the reference
// indexes: supplier identity resolution and purchase order line
// reconciliation.
//
// Both matchers are synchronous and side-effect free. They read an
// immutable index snapshot and the invoice, and return a new match
// object (or nil); results are fully deterministic for a given snapshot
// and input.
package match

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/internal/refdata"
	"invoicepipe/pkg/models"
)

// DefaultSupplierFuzzyThreshold is the minimum token-sort-ratio score
// (0-100) to accept a fuzzy supplier name match.
const DefaultSupplierFuzzyThreshold = 75

// Strategy confidences. Tax ID is the high-trust identity key; an exact
// name is almost as good; email domain is the weakest signal.
const (
	taxIDConfidence       = 1.0
	nameExactConfidence   = 0.95
	emailDomainConfidence = 0.7
	containsFallbackScore = 80 // score assigned by the substring degrade path
)

// SupplierMatcherConfig tunes supplier identity resolution.
type SupplierMatcherConfig struct {
	// FuzzyThreshold is the minimum token-sort-ratio score (0-100).
	FuzzyThreshold int

	// DisableFuzzy turns off fuzzy name scoring entirely.
	DisableFuzzy bool

	// ContainsFallback substitutes a substring-containment check when
	// fuzzy scoring is disabled. Off by default: the degrade path must be
	// an explicit operator choice, not a silent correctness loss.
	ContainsFallback bool
}

// SupplierMatcher resolves an invoice supplier block to a supplier in
// the master list using ordered strategies, first success wins:
//
//  1. tax ID exact (digits-only comparison)
//  2. name exact (case-insensitive, canonical name + aliases)
//  3. name fuzzy (token-sort-ratio over all candidate names)
//  4. email domain exact
//
// An earlier strategy's result is never overridden by a later one, even
// if the later one would score higher.
type SupplierMatcher struct {
	cfg SupplierMatcherConfig
	log zerolog.Logger
}

// NewSupplierMatcher creates a matcher. A zero FuzzyThreshold gets the
// default of 75.
func NewSupplierMatcher(cfg SupplierMatcherConfig) *SupplierMatcher {
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = DefaultSupplierFuzzyThreshold
	}
	return &SupplierMatcher{
		cfg: cfg,
		log: logger.WithComponent("supplier-matcher"),
	}
}

type supplierStrategy func(suppliers []models.Supplier, info *models.SupplierInfo) *models.MatchedSupplier

// Match resolves the invoice supplier, or returns nil when the invoice
// has no supplier block, the index is empty, or no strategy clears its
// threshold.
func (m *SupplierMatcher) Match(idx *refdata.SupplierIndex, inv *models.ExtractedInvoice) *models.MatchedSupplier {
	if idx.Len() == 0 {
		return nil
	}
	info := inv.Supplier
	if info == nil {
		m.log.Debug().Msg("Invoice has no supplier block, skipping supplier match")
		return nil
	}

	// Strategy order is the contract; keep it explicit and flat.
	strategies := []supplierStrategy{
		m.matchTaxID,
		m.matchNameExact,
		m.matchNameFuzzy,
		m.matchEmailDomain,
	}
	for _, strategy := range strategies {
		if matched := strategy(idx.Suppliers(), info); matched != nil {
			return matched
		}
	}

	m.log.Info().
		Str("name", info.Name).
		Str("tax_id", models.DigitsOnly(info.TaxID)).
		Msg("No supplier match found")
	return nil
}

func (m *SupplierMatcher) matchTaxID(suppliers []models.Supplier, info *models.SupplierInfo) *models.MatchedSupplier {
	invoiceTaxID := models.DigitsOnly(info.TaxID)
	if invoiceTaxID == "" {
		invoiceTaxID = models.DigitsOnly(info.CompanyID)
	}
	if invoiceTaxID == "" {
		return nil
	}
	for i := range suppliers {
		s := &suppliers[i]
		if s.TaxIDDigits() != "" && s.TaxIDDigits() == invoiceTaxID {
			m.log.Info().Str("tax_id", invoiceTaxID).Str("supplier", s.Name).Msg("Supplier matched by tax ID")
			return &models.MatchedSupplier{
				SupplierID:   s.ID,
				SupplierName: s.Name,
				MatchMethod:  models.MatchMethodTaxIDExact,
				Confidence:   taxIDConfidence,
				TaxID:        s.TaxID,
				MatchedOn:    map[string]string{"field": "tax_id", "value": invoiceTaxID},
			}
		}
	}
	return nil
}

func (m *SupplierMatcher) matchNameExact(suppliers []models.Supplier, info *models.SupplierInfo) *models.MatchedSupplier {
	invoiceName := strings.ToLower(strings.TrimSpace(info.Name))
	if invoiceName == "" {
		return nil
	}
	for i := range suppliers {
		s := &suppliers[i]
		for _, candidate := range s.AllNames() {
			if strings.ToLower(candidate) == invoiceName {
				m.log.Info().Str("supplier", s.Name).Msg("Supplier matched by exact name")
				return &models.MatchedSupplier{
					SupplierID:   s.ID,
					SupplierName: s.Name,
					MatchMethod:  models.MatchMethodNameExact,
					Confidence:   nameExactConfidence,
					TaxID:        s.TaxID,
					MatchedOn:    map[string]string{"field": "name", "value": info.Name},
				}
			}
		}
	}
	return nil
}

// matchNameFuzzy keeps the single highest-scoring candidate across all
// suppliers and all their aliases. Ties resolve to the first-seen
// supplier in index order; no secondary tie-break is defined.
func (m *SupplierMatcher) matchNameFuzzy(suppliers []models.Supplier, info *models.SupplierInfo) *models.MatchedSupplier {
	invoiceName := strings.ToLower(strings.TrimSpace(info.Name))
	if invoiceName == "" {
		return nil
	}
	if m.cfg.DisableFuzzy {
		if !m.cfg.ContainsFallback {
			return nil
		}
		return m.matchNameContains(suppliers, info, invoiceName)
	}

	bestScore := 0
	var bestSupplier *models.Supplier
	for i := range suppliers {
		s := &suppliers[i]
		for _, candidate := range s.AllNames() {
			score := fuzzy.TokenSortRatio(invoiceName, strings.ToLower(candidate))
			if score > bestScore {
				bestScore = score
				bestSupplier = s
			}
		}
	}

	if bestSupplier == nil || bestScore < m.cfg.FuzzyThreshold {
		m.log.Debug().Int("best_score", bestScore).Int("threshold", m.cfg.FuzzyThreshold).Msg("Best fuzzy score below threshold")
		return nil
	}

	m.log.Info().
		Str("invoice_name", invoiceName).
		Str("supplier", bestSupplier.Name).
		Int("score", bestScore).
		Msg("Supplier fuzzy matched")
	return &models.MatchedSupplier{
		SupplierID:   bestSupplier.ID,
		SupplierName: bestSupplier.Name,
		MatchMethod:  models.MatchMethodNameFuzzy,
		Confidence:   float64(bestScore) / 100.0,
		TaxID:        bestSupplier.TaxID,
		MatchedOn:    map[string]string{"field": "name", "value": info.Name},
	}
}

// matchNameContains is the explicit degrade path when fuzzy scoring is
// disabled: accept the first supplier whose candidate name contains (or
// is contained by) the invoice name.
func (m *SupplierMatcher) matchNameContains(suppliers []models.Supplier, info *models.SupplierInfo, invoiceName string) *models.MatchedSupplier {
	for i := range suppliers {
		s := &suppliers[i]
		for _, candidate := range s.AllNames() {
			c := strings.ToLower(candidate)
			if strings.Contains(c, invoiceName) || strings.Contains(invoiceName, c) {
				m.log.Info().Str("supplier", s.Name).Msg("Supplier matched by substring fallback")
				return &models.MatchedSupplier{
					SupplierID:   s.ID,
					SupplierName: s.Name,
					MatchMethod:  models.MatchMethodNameFuzzy,
					Confidence:   float64(containsFallbackScore) / 100.0,
					TaxID:        s.TaxID,
					MatchedOn:    map[string]string{"field": "name", "value": info.Name},
				}
			}
		}
	}
	return nil
}

func (m *SupplierMatcher) matchEmailDomain(suppliers []models.Supplier, info *models.SupplierInfo) *models.MatchedSupplier {
	invoiceDomain := emailDomain(info.Email)
	if invoiceDomain == "" {
		return nil
	}
	for i := range suppliers {
		s := &suppliers[i]
		if d := emailDomain(s.Email); d != "" && d == invoiceDomain {
			m.log.Info().Str("domain", invoiceDomain).Str("supplier", s.Name).Msg("Supplier matched by email domain")
			return &models.MatchedSupplier{
				SupplierID:   s.ID,
				SupplierName: s.Name,
				MatchMethod:  models.MatchMethodEmailDomain,
				Confidence:   emailDomainConfidence,
				TaxID:        s.TaxID,
				MatchedOn:    map[string]string{"field": "email_domain", "value": invoiceDomain},
			}
		}
	}
	return nil
}

// emailDomain extracts the lower-cased domain from an email address, or
// "" when the input does not look like an address.
func emailDomain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found || domain == "" {
		return ""
	}
	return strings.ToLower(domain)
}

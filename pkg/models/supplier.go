package models

import "strings"

// Supplier is a known supplier from the supplier master list.
// Aliases holds alternative trading names used during name matching.
type Supplier struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	TaxID     string   `json:"tax_id,omitempty"`
	CompanyID string   `json:"company_id,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Address   string   `json:"address,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
}

// TaxIDDigits returns the supplier tax ID reduced to digits only, or ""
// when the supplier has no tax ID. Comparison always happens on this form.
func (s *Supplier) TaxIDDigits() string {
	return DigitsOnly(s.TaxID)
}

// AllNames returns the canonical name plus all aliases, the full candidate
// set for name matching.
func (s *Supplier) AllNames() []string {
	names := make([]string, 0, len(s.Aliases)+1)
	names = append(names, s.Name)
	names = append(names, s.Aliases...)
	return names
}

// DigitsOnly strips every non-digit rune from s. Returns "" when nothing
// remains, so callers can treat punctuation-only input as absent.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"invoicepipe/pkg/models"
)

var (
	openFenceRe     = regexp.MustCompile(`(?i)^` + "```" + `(?:json)?\s*`)
	closeFenceRe    = regexp.MustCompile(`\s*` + "```" + `$`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// DecodeInvoiceJSON extracts an invoice from a model response. Models
// frequently wrap the JSON in code fences or surround it with prose, and
// smaller ones emit trailing commas; all of that is tolerated.
func DecodeInvoiceJSON(raw string) (*models.ExtractedInvoice, error) {
	const op = "DecodeInvoiceJSON"

	raw = strings.TrimSpace(raw)
	raw = openFenceRe.ReplaceAllString(raw, "")
	raw = closeFenceRe.ReplaceAllString(raw, "")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%s: no JSON object in response", op)
	}
	jsonStr := raw[start : end+1]

	var invoice models.ExtractedInvoice
	if err := json.Unmarshal([]byte(jsonStr), &invoice); err != nil {
		// One repair attempt: strip trailing commas before } or ].
		repaired := trailingCommaRe.ReplaceAllString(jsonStr, "$1")
		if err2 := json.Unmarshal([]byte(repaired), &invoice); err2 != nil {
			return nil, fmt.Errorf("%s: invalid JSON in response: %w", op, err)
		}
	}
	return &invoice, nil
}

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// Recognized column headers, normalized to lowercase with collapsed
// separators. Invoices vary wildly in how they label the same columns.
var (
	descriptionKeys = keySet("description", "item", "details", "product", "service",
		"goods", "particulars", "desc", "name", "work", "task",
		"item description", "product description")
	skuKeys = keySet("sku", "code", "item code", "part no", "part number",
		"part#", "ref", "product code", "cat no", "cat#",
		"item no", "item #", "item number", "job code")
	quantityKeys = keySet("qty", "quantity", "units", "no", "hours", "hrs", "count",
		"no.", "qty.", "order", "ordered", "supply", "supplied",
		"order qty", "supply qty", "delivered", "invoiced")
	unitKeys = keySet("unit", "uom", "each", "measure", "unit of measure")
	unitPriceKeys = keySet("unit price", "unit_price", "rate", "price", "unitprice",
		"unit cost", "each", "cost", "per unit", "charge",
		"unit rate", "price each")
	totalKeys = keySet("total", "amount", "line total", "linetotal", "ext",
		"extended", "net", "line amount", "nett", "extended amount",
		"total amount", "net amount")
)

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

var (
	headerSepRe = regexp.MustCompile(`[\s_\-.]+`)
	slashRe     = regexp.MustCompile(`\s*/\s*`)
	nonNumRe    = regexp.MustCompile(`[^0-9.\-]`)
)

func normHeader(s string) string {
	return strings.TrimSpace(strings.ToLower(headerSepRe.ReplaceAllString(s, " ")))
}

// headerMatches also checks slash-separated parts independently, so
// composite headers like "Delivered Quantity/Hours" still match.
func headerMatches(header string, keys map[string]bool) bool {
	if keys[normHeader(header)] {
		return true
	}
	for _, part := range slashRe.Split(header, -1) {
		part = strings.TrimSpace(part)
		if part != "" && keys[normHeader(part)] {
			return true
		}
	}
	return false
}

// minTableScore is the recognition score a table must reach before it is
// treated as the line items table.
const minTableScore = 2

// TableLineItems identifies the invoice line items table among the
// extracted tables and converts it directly to line items. When it
// succeeds the LLM stage only has to parse header fields, which is both
// faster and more accurate for well formatted PDFs. Returns nil when no
// suitable table is found.
func TableLineItems(tables []Table) []models.LineItem {
	log := logger.WithComponent("table-extract")

	best := findLineItemsTable(tables)
	if best == nil {
		log.Debug().Msg("No line items table found in extraction output")
		return nil
	}

	items := parseLineItemsTable(*best, log)
	if len(items) > 0 {
		log.Info().
			Int("count", len(items)).
			Msg("Direct table extraction produced line items")
	}
	return items
}

func findLineItemsTable(tables []Table) *Table {
	var best *Table
	bestScore := 0
	for i := range tables {
		t := &tables[i]
		if len(t.Rows) == 0 {
			continue
		}
		score := scoreTable(t.Headers, len(t.Rows))
		if score > bestScore {
			bestScore = score
			best = t
		}
	}
	if bestScore < minTableScore {
		return nil
	}
	return best
}

// scoreTable weighs headers by how strongly they indicate line items.
// Description is the strongest signal; a multi-row body adds one point.
func scoreTable(headers []string, rowCount int) int {
	score := 0
	for _, h := range headers {
		switch {
		case headerMatches(h, descriptionKeys):
			score += 2
		case headerMatches(h, quantityKeys):
			score++
		case headerMatches(h, unitPriceKeys):
			score++
		case headerMatches(h, totalKeys):
			score++
		case headerMatches(h, skuKeys):
			score++
		}
	}
	if rowCount >= 2 {
		score++
	}
	return score
}

// columnMap maps column index to line item field name. Each field is
// assigned at most once, first matching header wins.
func columnMap(headers []string) map[int]string {
	priority := []struct {
		field string
		keys  map[string]bool
	}{
		{"description", descriptionKeys},
		{"sku", skuKeys},
		{"quantity", quantityKeys},
		{"unit", unitKeys},
		{"unit_price", unitPriceKeys},
		{"total", totalKeys},
	}

	mapping := make(map[int]string)
	assigned := make(map[string]bool)
	for i, header := range headers {
		for _, p := range priority {
			if !assigned[p.field] && headerMatches(header, p.keys) {
				mapping[i] = p.field
				assigned[p.field] = true
				break
			}
		}
	}
	return mapping
}

func parseLineItemsTable(table Table, log zerolog.Logger) []models.LineItem {
	colMap := columnMap(table.Headers)
	if len(colMap) == 0 {
		return nil
	}

	var items []models.LineItem
	lineNum := 0

	for _, row := range table.Rows {
		// Some layouts pack every item into one row with newline
		// separated cell values.
		for _, subRow := range expandStackedRow(row) {
			if len(subRow) > 0 && descriptionKeys[normHeader(subRow[0])] {
				continue // embedded header row
			}

			lineNum++
			item := buildLineItem(subRow, colMap, lineNum)

			// A valid line item needs a total, at least one numeric
			// dimension, and something identifying it. This filters out
			// header echoes, subtotal rows, and blank rows.
			hasDimension := item.Quantity != nil || item.UnitPrice != nil
			hasIdentity := item.SKU != "" || item.Description != ""
			if item.Total != nil && hasDimension && hasIdentity {
				items = append(items, item)
			} else {
				lineNum--
			}
		}
	}

	if len(items) == 0 {
		log.Debug().Msg("Candidate table yielded no usable line items")
	}
	return items
}

func buildLineItem(row []string, colMap map[int]string, lineNum int) models.LineItem {
	n := lineNum
	item := models.LineItem{LineNumber: &n}

	for col, field := range colMap {
		if col >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[col])
		if val == "" || val == "None" || val == "-" || val == "–" {
			continue
		}
		switch field {
		case "description":
			item.Description = val
		case "sku":
			item.SKU = val
		case "unit":
			item.Unit = val
		case "quantity":
			item.Quantity = parseCellNumber(val)
		case "unit_price":
			item.UnitPrice = parseCellNumber(val)
		case "total":
			item.Total = parseCellNumber(val)
		}
	}
	return item
}

// expandStackedRow splits rows whose cells hold newline separated
// stacked values into one row per stacked line. Returns the row
// unchanged when no stacking is present.
func expandStackedRow(row []string) [][]string {
	maxParts := 1
	for _, cell := range row {
		if parts := strings.Count(cell, "\n") + 1; parts > maxParts {
			maxParts = parts
		}
	}
	if maxParts == 1 {
		return [][]string{row}
	}

	split := make([][]string, len(row))
	for i, cell := range row {
		split[i] = strings.Split(cell, "\n")
	}

	expanded := make([][]string, maxParts)
	for i := 0; i < maxParts; i++ {
		sub := make([]string, len(row))
		for j := range row {
			if i < len(split[j]) {
				sub[j] = strings.TrimSpace(split[j][i])
			}
		}
		expanded[i] = sub
	}
	return expanded
}

// parseCellNumber strips currency symbols and thousands separators
// before parsing. Returns nil when nothing numeric remains.
func parseCellNumber(s string) *float64 {
	cleaned := nonNumRe.ReplaceAllString(strings.ReplaceAll(s, ",", ""), "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

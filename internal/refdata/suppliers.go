// Package refdata loads the supplier master list and purchase order
// reference data from CSV files and keeps them available to the matching
// pipeline as immutable in-memory indexes.
//
// Index objects are never mutated after construction. Hot reload is an
// atomic pointer swap (see Store): concurrent readers always observe
// either the old index or the new one in full.
package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// AliasDelimiter separates alternative names in the suppliers CSV
// aliases column, e.g. "ACME Corp|ACME Pty Ltd".
const AliasDelimiter = "|"

// SupplierIndex is an immutable snapshot of the supplier master list.
type SupplierIndex struct {
	suppliers []models.Supplier
}

// Suppliers returns the loaded suppliers in file order. Callers must not
// modify the returned slice.
func (idx *SupplierIndex) Suppliers() []models.Supplier {
	if idx == nil {
		return nil
	}
	return idx.suppliers
}

// Len returns the number of loaded suppliers.
func (idx *SupplierIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.suppliers)
}

// LoadSupplierIndex reads the supplier master list CSV.
//
// Expected columns: id, name, tax_id, company_id, email, phone, address,
// aliases (pipe-delimited). A missing file is not an error: it yields an
// empty index and supplier matching is effectively disabled. Malformed
// rows are skipped with a logged warning; they never abort the load.
func LoadSupplierIndex(path string) (*SupplierIndex, error) {
	const op = "LoadSupplierIndex"
	log := logger.WithComponent("refdata")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Suppliers CSV not found - supplier matching disabled")
			return &SupplierIndex{}, nil
		}
		return nil, fmt.Errorf("%s: failed to open %s: %w", op, path, err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse %s: %w", op, path, err)
	}

	idx := &SupplierIndex{}
	for i, row := range rows {
		supplier, err := parseSupplierRow(row)
		if err != nil {
			log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed supplier row")
			continue
		}
		idx.suppliers = append(idx.suppliers, supplier)
	}

	log.Info().Int("suppliers", len(idx.suppliers)).Str("path", path).Msg("Supplier master list loaded")
	return idx, nil
}

func parseSupplierRow(row map[string]string) (models.Supplier, error) {
	id := strings.TrimSpace(row["id"])
	name := strings.TrimSpace(row["name"])
	if id == "" || name == "" {
		return models.Supplier{}, fmt.Errorf("supplier row missing id or name")
	}

	var aliases []string
	for _, a := range strings.Split(row["aliases"], AliasDelimiter) {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}

	return models.Supplier{
		ID:        id,
		Name:      name,
		TaxID:     models.DigitsOnly(row["tax_id"]),
		CompanyID: models.DigitsOnly(row["company_id"]),
		Email:     strings.TrimSpace(row["email"]),
		Phone:     strings.TrimSpace(row["phone"]),
		Address:   strings.TrimSpace(row["address"]),
		Aliases:   aliases,
	}, nil
}

// readCSV reads a header-keyed CSV into one map per data row. Header
// names are lower-cased and trimmed so column order never matters.
func readCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; row parsers decide what is required
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func logSkippedRow(log zerolog.Logger, file string, rowNum int, reason string) {
	log.Warn().Str("file", file).Int("row", rowNum).Str("reason", reason).Msg("Skipping reference data row")
}

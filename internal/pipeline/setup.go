package pipeline

import (
	"context"
	"os"

	"invoicepipe/internal/llm"
)

// FileStatus reports presence and record count for one data file.
type FileStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Count  int    `json:"count,omitempty"`
}

// SetupStatus is the result of a pre-flight diagnostics pass.
type SetupStatus struct {
	LLM          llm.ConnectionStatus `json:"llm"`
	SuppliersCSV FileStatus           `json:"suppliers_csv"`
	POCSV        FileStatus           `json:"po_csv"`
	Database     FileStatus           `json:"database"`
	InvoicesDir  FileStatus           `json:"invoices_dir"`
}

// CheckSetup verifies the LLM endpoint and reports on reference data,
// database, and invoice directory availability.
func (p *Processor) CheckSetup(ctx context.Context) SetupStatus {
	return SetupStatus{
		LLM: p.parser.CheckConnection(ctx),
		SuppliersCSV: FileStatus{
			Path:   p.cfg.SuppliersCSV,
			Exists: fileExists(p.cfg.SuppliersCSV),
			Count:  p.refdata.Suppliers().Len(),
		},
		POCSV: FileStatus{
			Path:   p.cfg.POCSV,
			Exists: fileExists(p.cfg.POCSV),
			Count:  p.refdata.PurchaseOrders().Len(),
		},
		Database: FileStatus{
			Path:   p.cfg.DBPath,
			Exists: fileExists(p.cfg.DBPath),
		},
		InvoicesDir: FileStatus{
			Path:   p.cfg.InvoicesDir,
			Exists: fileExists(p.cfg.InvoicesDir),
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

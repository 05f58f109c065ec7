// Package extract turns invoice PDFs into plain text plus structured
// tables for the downstream parsing stages.
//
// Two extractors are provided, mirroring the pipeline's accuracy/speed
// modes:
//   - DocumentAIExtractor: layout-aware extraction via Google Document AI
//     (text plus detected tables). The default.
//   - VisionExtractor: plain-text OCR via Google Cloud Vision. Faster and
//     cheaper, but yields no tables, so line items fall entirely to the
//     LLM stage.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: path to service account JSON, OR
//   - GOOGLE_CREDENTIALS: inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID
//   - GOOGLE_CLOUD_LOCATION: processing location (e.g. "us", "eu")
//   - DOCUMENT_AI_PROCESSOR_ID: processor ID (Document AI mode only)
package extract

import (
	"context"
)

// MaxDocumentSizeBytes is the maximum document size for synchronous
// processing (20MB, a Google API limit shared by both backends).
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// Table is one structured table detected in the document.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// DocumentExtraction is the uniform output of every extractor: the
// document's plain text plus any structured tables the backend detected.
type DocumentExtraction struct {
	Text          string  `json:"text"`
	Tables        []Table `json:"tables,omitempty"`
	ExtractorName string  `json:"extractor_name"`
	PageCount     int     `json:"page_count,omitempty"`
}

// Extractor converts one PDF into a DocumentExtraction.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (*DocumentExtraction, error)

	// Name identifies the backend for logging and result metadata.
	Name() string
}

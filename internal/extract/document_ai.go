package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicepipe/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI extractor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g. "us", "eu"). Must match
	// where the processor was created.
	Location string

	// ProcessorID is the Document AI processor ID.
	ProcessorID string

	// ProcessorVersion pins a specific processor version. Empty uses the
	// processor default.
	ProcessorVersion string

	// Timeout is the maximum time to wait for processing. Default 60s.
	Timeout time.Duration
}

// DocumentAIExtractor extracts text and tables from PDFs using Google
// Document AI. This is the accuracy-first extractor: detected tables let
// the table stage pull line items without involving the LLM.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates an extractor with credentials from the
// environment (GOOGLE_CREDENTIALS inline JSON or
// GOOGLE_APPLICATION_CREDENTIALS file path, falling back to application
// default credentials).
func NewDocumentAIExtractor(ctx context.Context, config DocumentAIConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if config.ProjectID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapExtractionError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapExtractionError(op, err, fmt.Sprintf("failed to create Document AI client for location %s", config.Location))
	}

	return &DocumentAIExtractor{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Name identifies this extractor in logs and result metadata.
func (e *DocumentAIExtractor) Name() string { return "document_ai" }

// Extract runs the PDF through the Document AI processor and converts
// the response into text plus structured tables.
func (e *DocumentAIExtractor) Extract(ctx context.Context, pdfPath string) (*DocumentExtraction, error) {
	const op = "Extract"

	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to read PDF file")
	}
	if len(pdfBytes) > MaxDocumentSizeBytes {
		return nil, WrapExtractionError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapExtractionError(op, ErrInvalidPDF, "missing PDF header")
	}

	processCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: e.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := e.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, e.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, "no document in response")
	}

	extraction := &DocumentExtraction{
		Text:          resp.Document.Text,
		Tables:        e.extractTables(resp.Document),
		ExtractorName: e.Name(),
		PageCount:     len(resp.Document.Pages),
	}

	e.log.Info().
		Str("file", pdfPath).
		Int("pages", extraction.PageCount).
		Int("tables", len(extraction.Tables)).
		Int("text_length", len(extraction.Text)).
		Msg("Document extracted")

	return extraction, nil
}

func (e *DocumentAIExtractor) processorName() string {
	if e.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			e.config.ProjectID, e.config.Location, e.config.ProcessorID, e.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		e.config.ProjectID, e.config.Location, e.config.ProcessorID)
}

// extractTables converts Document AI page tables to the neutral Table
// form. The first header row becomes Headers; body rows become Rows.
func (e *DocumentAIExtractor) extractTables(doc *documentaipb.Document) []Table {
	var tables []Table
	for _, page := range doc.Pages {
		for _, t := range page.Tables {
			table := Table{}
			if len(t.HeaderRows) > 0 {
				table.Headers = e.rowCells(doc, t.HeaderRows[0])
			}
			for _, row := range t.BodyRows {
				table.Rows = append(table.Rows, e.rowCells(doc, row))
			}
			if len(table.Rows) > 0 {
				tables = append(tables, table)
			}
		}
	}
	return tables
}

func (e *DocumentAIExtractor) rowCells(doc *documentaipb.Document, row *documentaipb.Document_Page_Table_TableRow) []string {
	cells := make([]string, 0, len(row.Cells))
	for _, cell := range row.Cells {
		cells = append(cells, anchorText(doc, cell.Layout))
	}
	return cells
}

// anchorText resolves a layout's text anchor against the document text.
func anchorText(doc *documentaipb.Document, layout *documentaipb.Document_Page_Layout) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var b strings.Builder
	for _, segment := range layout.TextAnchor.TextSegments {
		start, end := segment.StartIndex, segment.EndIndex
		if start < 0 || end > int64(len(doc.Text)) || start > end {
			continue
		}
		b.WriteString(doc.Text[start:end])
	}
	return strings.TrimSpace(b.String())
}

// handleProcessingError converts Document AI errors to extraction errors.
func (e *DocumentAIExtractor) handleProcessingError(op string, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapExtractionError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return WrapExtractionError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapExtractionError(op, ErrInvalidPDF, "document format not supported or corrupted")
	default:
		return WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

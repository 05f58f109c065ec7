package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicepipe/internal/logger"
)

// MaxPagesSync is the Vision API page limit for synchronous PDF
// processing.
const MaxPagesSync = 5

// VisionExtractor extracts plain text from PDFs via Google Cloud Vision
// document text detection. The speed-first fallback: no table structure,
// so the LLM stage handles all line items.
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionExtractor creates an extractor with credentials from the
// environment, mirroring the Document AI credential lookup.
func NewVisionExtractor(ctx context.Context) (*VisionExtractor, error) {
	const op = "NewVisionExtractor"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapExtractionError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to create Vision client")
	}

	return &VisionExtractor{
		client: client,
		log:    logger.WithComponent("vision-ocr"),
	}, nil
}

// Name identifies this extractor in logs and result metadata.
func (e *VisionExtractor) Name() string { return "vision_ocr" }

// Extract OCRs the PDF and returns its concatenated page text. Tables
// are always empty for this backend.
func (e *VisionExtractor) Extract(ctx context.Context, pdfPath string) (*DocumentExtraction, error) {
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

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := e.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapExtractionError(op, ErrProcessingFailed, "no response from Vision API")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}
	if len(fileResp.Responses) > MaxPagesSync {
		return nil, WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("document has %d pages, sync limit is %d", len(fileResp.Responses), MaxPagesSync))
	}

	var text strings.Builder
	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("error processing page %d: %s", pageIdx+1, page.Error.Message))
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if pageIdx > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(page.FullTextAnnotation.Text)
	}

	extraction := &DocumentExtraction{
		Text:          text.String(),
		ExtractorName: e.Name(),
		PageCount:     len(fileResp.Responses),
	}

	e.log.Info().
		Str("file", pdfPath).
		Int("pages", extraction.PageCount).
		Int("text_length", len(extraction.Text)).
		Msg("Document OCR completed")

	return extraction, nil
}

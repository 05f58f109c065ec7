// Package export delivers finished processing results to external
// systems: a configurable JSON webhook (DMS, ERP, custom endpoints) and
// a Google Sheets summary for operators who live in spreadsheets.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// WebhookConfig configures the webhook exporter.
type WebhookConfig struct {
	URL         string
	Method      string // default POST
	HeadersJSON string // optional JSON object of extra headers
	IncludePDF  bool   // attach the source PDF base64-encoded
	Timeout     time.Duration
}

// WebhookResult describes one delivery attempt, suitable for audit
// logging.
type WebhookResult struct {
	Status     string `json:"status"` // success | failed | skipped
	StatusCode int    `json:"status_code,omitempty"`
	Response   string `json:"response_summary,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WebhookExporter pushes processing results to a configured URL as JSON.
type WebhookExporter struct {
	config  WebhookConfig
	headers map[string]string
	client  *http.Client
	log     zerolog.Logger
}

// NewWebhookExporter creates an exporter. Extra headers from
// HeadersJSON are parsed once up front so a malformed value fails fast.
func NewWebhookExporter(config WebhookConfig) (*WebhookExporter, error) {
	const op = "NewWebhookExporter"

	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	headers := make(map[string]string)
	if config.HeadersJSON != "" {
		if err := json.Unmarshal([]byte(config.HeadersJSON), &headers); err != nil {
			return nil, fmt.Errorf("%s: invalid webhook headers JSON: %w", op, err)
		}
	}

	return &WebhookExporter{
		config:  config,
		headers: headers,
		client:  &http.Client{Timeout: config.Timeout},
		log:     logger.WithComponent("webhook-export"),
	}, nil
}

// webhookPayload is the delivered document: the full processing result
// plus the optional encoded source PDF.
type webhookPayload struct {
	*models.ProcessingResult
	PDFBase64    string `json:"pdf_base64,omitempty"`
	PDFSizeBytes int    `json:"pdf_size_bytes,omitempty"`
}

// Send delivers one result. A missing URL yields a skipped result, not
// an error, so callers can leave the webhook unconfigured.
func (e *WebhookExporter) Send(ctx context.Context, stem string, result *models.ProcessingResult, pdfPath string) WebhookResult {
	if e.config.URL == "" {
		return WebhookResult{Status: "skipped", Error: "webhook URL not configured"}
	}

	payload := webhookPayload{ProcessingResult: result}
	if e.config.IncludePDF && pdfPath != "" {
		if pdfBytes, err := os.ReadFile(pdfPath); err == nil {
			payload.PDFBase64 = base64.StdEncoding.EncodeToString(pdfBytes)
			payload.PDFSizeBytes = len(pdfBytes)
		} else {
			e.log.Warn().Err(err).Str("pdf", pdfPath).Msg("Could not read PDF for webhook payload")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return WebhookResult{Status: "failed", Error: fmt.Sprintf("payload encoding failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, e.config.Method, e.config.URL, bytes.NewReader(body))
	if err != nil {
		return WebhookResult{Status: "failed", Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "invoicepipe-webhook/1.0")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Error().Err(err).Str("stem", stem).Msg("Webhook delivery failed")
		return WebhookResult{Status: "failed", Error: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	summary := string(respBody)
	if len(summary) > 200 {
		summary = summary[:200]
	}

	if resp.StatusCode >= 300 {
		e.log.Error().
			Str("stem", stem).
			Int("status_code", resp.StatusCode).
			Msg("Webhook endpoint rejected payload")
		return WebhookResult{Status: "failed", StatusCode: resp.StatusCode, Error: summary}
	}

	e.log.Info().
		Str("stem", stem).
		Int("status_code", resp.StatusCode).
		Msg("Webhook export delivered")
	return WebhookResult{Status: "success", StatusCode: resp.StatusCode, Response: summary}
}

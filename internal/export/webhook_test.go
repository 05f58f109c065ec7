package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicepipe/pkg/models"
)

func testResult() *models.ProcessingResult {
	total := 110.0
	r := &models.ProcessingResult{
		ID:         "a2f1c050-0000-4000-8000-000000000001",
		SourceFile: "inbox/INV-001.pdf",
		ExtractedInvoice: models.ExtractedInvoice{
			InvoiceNumber: "INV-001",
			Total:         &total,
		},
	}
	r.ComputeSummary()
	return r
}

func TestWebhookSend(t *testing.T) {
	var gotBody map[string]any
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received": true}`))
	}))
	defer server.Close()

	exporter, err := NewWebhookExporter(WebhookConfig{
		URL:         server.URL,
		HeadersJSON: `{"X-Api-Key": "secret"}`,
	})
	require.NoError(t, err)

	res := exporter.Send(context.Background(), "INV-001", testResult(), "")
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Response, "received")

	assert.Equal(t, "secret", gotHeader.Get("X-Api-Key"))
	assert.Equal(t, "application/json; charset=utf-8", gotHeader.Get("Content-Type"))
	assert.Equal(t, "INV-001", gotBody["extracted_invoice"].(map[string]any)["invoice_number"])
	_, hasPDF := gotBody["pdf_base64"]
	assert.False(t, hasPDF)
}

func TestWebhookSendWithPDF(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	pdfPath := filepath.Join(t.TempDir(), "inv.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644))

	exporter, err := NewWebhookExporter(WebhookConfig{URL: server.URL, IncludePDF: true})
	require.NoError(t, err)

	res := exporter.Send(context.Background(), "INV-001", testResult(), pdfPath)
	assert.Equal(t, "success", res.Status)
	assert.NotEmpty(t, gotBody["pdf_base64"])
	assert.Equal(t, float64(13), gotBody["pdf_size_bytes"])
}

func TestWebhookSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	exporter, err := NewWebhookExporter(WebhookConfig{URL: server.URL})
	require.NoError(t, err)

	res := exporter.Send(context.Background(), "INV-001", testResult(), "")
	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestWebhookSendSkippedWithoutURL(t *testing.T) {
	exporter, err := NewWebhookExporter(WebhookConfig{})
	require.NoError(t, err)

	res := exporter.Send(context.Background(), "INV-001", testResult(), "")
	assert.Equal(t, "skipped", res.Status)
}

func TestNewWebhookExporterBadHeaders(t *testing.T) {
	_, err := NewWebhookExporter(WebhookConfig{URL: "http://example.com", HeadersJSON: "not json"})
	assert.Error(t, err)
}

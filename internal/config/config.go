package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicepipe/internal/logger"
)

// Config is the full pipeline configuration, loaded from environment
// variables (godotenv loads .env in main before this runs).
type Config struct {
	// Extraction
	UseDocumentAI bool // true = Document AI layout extractor, false = Vision OCR plain text

	// OpenAI-compatible LLM for field extraction
	OpenAIAPIKey      string
	OpenAIBaseURL     string // empty = api.openai.com
	OpenAIModel       string
	OpenAITemperature float32

	// Google Cloud (Document AI / Vision)
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Reference data
	SuppliersCSV string
	POCSV        string
	POLinesCSV   string

	// Output / persistence
	InvoicesDir string
	DBPath      string
	ExportDir   string

	// Watch mode
	PollInterval time.Duration

	// Validation thresholds
	MaxInvoiceAgeDays   int     // warn when invoice date is older than this
	MaxFutureDays       int     // error when invoice date is further ahead than this
	ArithmeticTolerance float64 // absolute rounding tolerance for totals

	// Supplier matching
	SupplierFuzzyThreshold int  // minimum token-sort-ratio score (0-100)
	FuzzyContainsFallback  bool // substring-containment degrade path when fuzzy scoring is disabled

	// PO line matching
	POLineFuzzyThreshold int // minimum token-sort-ratio score for descriptions (0-100)

	// Webhook export
	WebhookEnabled bool
	WebhookURL     string
	WebhookMethod  string
	WebhookHeaders string // JSON object of extra headers

	// Google Sheets export
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment and applies defaults.
func Load() (*Config, error) {
	config := &Config{
		UseDocumentAI:     getEnv("USE_DOCUMENT_AI", "true") != "false",
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature: float32(getEnvFloat("OPENAI_TEMPERATURE", 0.1)),

		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),

		SuppliersCSV: getEnv("SUPPLIERS_CSV", "data/suppliers.csv"),
		POCSV:        getEnv("PO_CSV", "data/purchase_orders.csv"),
		POLinesCSV:   getEnv("PO_LINES_CSV", "data/purchase_order_lines.csv"),

		InvoicesDir: getEnv("INVOICES_DIR", "invoices"),
		DBPath:      getEnv("DB_PATH", "output/pipeline.db"),
		ExportDir:   getEnv("EXPORT_DIR", "output/export"),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL", 30)) * time.Second,

		MaxInvoiceAgeDays:   getEnvInt("MAX_INVOICE_AGE_DAYS", 90),
		MaxFutureDays:       getEnvInt("MAX_FUTURE_DAYS", 7),
		ArithmeticTolerance: getEnvFloat("ARITHMETIC_TOLERANCE", 0.05),

		SupplierFuzzyThreshold: getEnvInt("SUPPLIER_FUZZY_THRESHOLD", 75),
		FuzzyContainsFallback:  getEnv("FUZZY_CONTAINS_FALLBACK", "false") == "true",
		POLineFuzzyThreshold:   getEnvInt("PO_LINE_FUZZY_THRESHOLD", 65),

		WebhookEnabled: getEnv("WEBHOOK_EXPORT_ENABLED", "false") == "true",
		WebhookURL:     getEnv("WEBHOOK_EXPORT_URL", ""),
		WebhookMethod:  getEnv("WEBHOOK_EXPORT_METHOD", "POST"),
		WebhookHeaders: getEnv("WEBHOOK_EXPORT_HEADERS", ""),

		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Invoices"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.SupplierFuzzyThreshold < 0 || c.SupplierFuzzyThreshold > 100 {
		return fmt.Errorf("SUPPLIER_FUZZY_THRESHOLD must be 0-100, got %d", c.SupplierFuzzyThreshold)
	}
	if c.POLineFuzzyThreshold < 0 || c.POLineFuzzyThreshold > 100 {
		return fmt.Errorf("PO_LINE_FUZZY_THRESHOLD must be 0-100, got %d", c.POLineFuzzyThreshold)
	}
	if c.ArithmeticTolerance < 0 {
		return fmt.Errorf("ARITHMETIC_TOLERANCE must be non-negative, got %v", c.ArithmeticTolerance)
	}
	if c.MaxInvoiceAgeDays < 0 || c.MaxFutureDays < 0 {
		return fmt.Errorf("date windows must be non-negative (MAX_INVOICE_AGE_DAYS=%d MAX_FUTURE_DAYS=%d)",
			c.MaxInvoiceAgeDays, c.MaxFutureDays)
	}
	if c.WebhookEnabled && c.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_EXPORT_URL is required when webhook export is enabled")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

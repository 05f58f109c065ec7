// Package llm turns extracted document text into a structured invoice
// using an OpenAI-compatible chat completion API.
//
// Any backend that speaks the OpenAI wire protocol works: set
// OPENAI_BASE_URL to point at OpenAI, Groq, Azure, or a local Ollama
// instance. When line items were already pulled straight from document
// tables, the model is given a shorter metadata-only prompt and the
// pre-extracted items are merged in afterwards, which cuts token usage
// and improves accuracy on the header fields.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"invoicepipe/internal/logger"
	"invoicepipe/pkg/models"
)

// Parser extracts structured invoice data from document text.
type Parser interface {
	// Parse converts document text into an invoice. When preExtracted is
	// non-empty those line items replace whatever the model returns.
	Parse(ctx context.Context, text string, preExtracted []models.LineItem) (*models.ExtractedInvoice, error)

	// CheckConnection verifies the endpoint is reachable and reports
	// whether the configured model is available.
	CheckConnection(ctx context.Context) ConnectionStatus
}

// ConnectionStatus is the result of an endpoint health check.
type ConnectionStatus struct {
	OK              bool     `json:"ok"`
	BaseURL         string   `json:"base_url"`
	ModelAvailable  bool     `json:"model_available"`
	AvailableModels []string `json:"available_models,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ParserConfig configures the OpenAI-compatible parser.
type ParserConfig struct {
	APIKey      string
	BaseURL     string // empty uses the OpenAI default
	Model       string
	Temperature float32
	MaxRetries  int // default 3
}

// OpenAIParser implements Parser against any OpenAI-compatible backend.
type OpenAIParser struct {
	client *openai.Client
	config ParserConfig
	log    zerolog.Logger
}

// NewOpenAIParser creates a parser. The API key is required; everything
// else has workable defaults.
func NewOpenAIParser(config ParserConfig) (*OpenAIParser, error) {
	const op = "NewOpenAIParser"

	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", op)
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIParser{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		log:    logger.WithComponent("llm-parser"),
	}, nil
}

// Parse sends the document text to the model and decodes the JSON it
// returns into an invoice.
func (p *OpenAIParser) Parse(ctx context.Context, text string, preExtracted []models.LineItem) (*models.ExtractedInvoice, error) {
	const op = "Parse"

	basePrompt := promptFull
	if len(preExtracted) > 0 {
		p.log.Info().
			Int("line_items", len(preExtracted)).
			Msg("Using metadata-only prompt, line items pre-extracted from tables")
		basePrompt = promptMetadataOnly
	}
	prompt := strings.Replace(basePrompt, "%DOCUMENT%", text, 1)

	var invoice *models.ExtractedInvoice
	var lastErr error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		p.log.Debug().
			Int("attempt", attempt).
			Str("model", p.config.Model).
			Msg("Requesting invoice extraction")

		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.config.Model,
			Temperature: p.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			p.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Completion request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices from model")
			continue
		}

		invoice, err = DecodeInvoiceJSON(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			p.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Model returned unparseable JSON, retrying")
			continue
		}

		p.log.Info().Int("attempt", attempt).Msg("Invoice extraction succeeded")
		break
	}
	if invoice == nil {
		return nil, fmt.Errorf("%s: no valid invoice JSON after %d attempts: %w", op, p.config.MaxRetries, lastErr)
	}

	// Table-derived line items are more accurate than the model's.
	if len(preExtracted) > 0 {
		invoice.LineItems = preExtracted
		p.log.Info().
			Int("count", len(preExtracted)).
			Msg("Merged pre-extracted line items into invoice")
	}

	return invoice, nil
}

// CheckConnection lists the endpoint's models to confirm reachability.
func (p *OpenAIParser) CheckConnection(ctx context.Context) ConnectionStatus {
	status := ConnectionStatus{BaseURL: p.baseURL()}

	resp, err := p.client.ListModels(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.OK = true
	for _, m := range resp.Models {
		status.AvailableModels = append(status.AvailableModels, m.ID)
		if strings.Contains(m.ID, p.config.Model) {
			status.ModelAvailable = true
		}
	}
	return status
}

func (p *OpenAIParser) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	return "https://api.openai.com/v1"
}

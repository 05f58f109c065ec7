// Package pipeline ties extraction, LLM parsing, supplier matching, PO
// matching, and validation into a single Process call, with batch and
// watch modes layered on top.
//
// Processing state is persisted in SQLite so watch mode can be stopped
// and restarted safely: no invoice is processed twice unless its source
// file has changed.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicepipe/internal/config"
	"invoicepipe/internal/extract"
	"invoicepipe/internal/llm"
	"invoicepipe/internal/logger"
	"invoicepipe/internal/match"
	"invoicepipe/internal/refdata"
	"invoicepipe/internal/store"
	"invoicepipe/internal/validate"
	"invoicepipe/pkg/models"
)

// Processor orchestrates the full invoice processing pipeline.
type Processor struct {
	cfg             *config.Config
	refdata         *refdata.Store
	extractor       extract.Extractor
	parser          llm.Parser
	supplierMatcher *match.SupplierMatcher
	poMatcher       *match.POMatcher
	validator       *validate.Validator
	db              *store.Store
	log             zerolog.Logger
}

// New builds a Processor from configuration, constructing the extractor
// and LLM client from the environment.
func New(ctx context.Context, cfg *config.Config) (*Processor, error) {
	const op = "New"

	log := logger.WithComponent("pipeline")

	var extractor extract.Extractor
	var err error
	if cfg.UseDocumentAI {
		extractor, err = extract.NewDocumentAIExtractor(ctx, extract.DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
		})
		log.Info().Msg("Using Document AI extractor (accuracy-first mode)")
	} else {
		extractor, err = extract.NewVisionExtractor(ctx)
		log.Info().Msg("Using Vision OCR extractor (speed mode)")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create extractor: %w", op, err)
	}

	parser, err := llm.NewOpenAIParser(llm.ParserConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create LLM parser: %w", op, err)
	}

	ref, err := refdata.NewStore(cfg.SuppliersCSV, cfg.POCSV, cfg.POLinesCSV)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load reference data: %w", op, err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	return NewWithDeps(cfg, ref, extractor, parser, db), nil
}

// NewWithDeps builds a Processor from explicit dependencies. Tests use
// this to substitute fakes for the cloud-backed stages.
func NewWithDeps(cfg *config.Config, ref *refdata.Store, extractor extract.Extractor, parser llm.Parser, db *store.Store) *Processor {
	return &Processor{
		cfg:       cfg,
		refdata:   ref,
		extractor: extractor,
		parser:    parser,
		supplierMatcher: match.NewSupplierMatcher(match.SupplierMatcherConfig{
			FuzzyThreshold:   cfg.SupplierFuzzyThreshold,
			ContainsFallback: cfg.FuzzyContainsFallback,
		}),
		poMatcher: match.NewPOMatcher(match.POMatcherConfig{
			FuzzyThreshold: cfg.POLineFuzzyThreshold,
		}),
		validator: validate.New(validate.Config{
			MaxDaysPast:         cfg.MaxInvoiceAgeDays,
			MaxDaysFuture:       cfg.MaxFutureDays,
			ArithmeticTolerance: cfg.ArithmeticTolerance,
		}),
		db:  db,
		log: logger.WithComponent("pipeline"),
	}
}

// Close releases the processor's database handle.
func (p *Processor) Close() error {
	return p.db.Close()
}

// DB exposes the state database for the status and export commands.
func (p *Processor) DB() *store.Store {
	return p.db
}

// Process runs one invoice PDF end to end and persists the result.
func (p *Processor) Process(ctx context.Context, pdfPath string) (*models.ProcessingResult, error) {
	const op = "Process"

	stem := stemOf(pdfPath)
	log := logger.WithInvoice(stem)
	log.Info().Str("file", pdfPath).Msg("Processing invoice")
	start := time.Now()

	extraction, err := p.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%s: extraction failed: %w", op, err)
	}

	var preExtracted []models.LineItem
	if len(extraction.Tables) > 0 {
		preExtracted = extract.TableLineItems(extraction.Tables)
		if preExtracted == nil {
			log.Info().Msg("No line items table recognized, LLM will handle all fields")
		}
	}

	invoice, err := p.parser.Parse(ctx, extraction.Text, preExtracted)
	if err != nil {
		return nil, fmt.Errorf("%s: LLM parsing failed: %w", op, err)
	}

	fillComputedTotals(invoice)

	supplierIdx := p.refdata.Suppliers()
	poIdx := p.refdata.PurchaseOrders()

	matchedSupplier := p.supplierMatcher.Match(supplierIdx, invoice)
	matchedPO := p.poMatcher.Match(poIdx, invoice)

	var poRecord *models.PurchaseOrder
	if matchedPO != nil {
		poRecord = poIdx.Get(matchedPO.PONumber)
	}

	discrepancies := p.validator.Validate(invoice, matchedPO, matchedSupplier, poRecord)

	result := &models.ProcessingResult{
		ID:                    uuid.NewString(),
		SourceFile:            pdfPath,
		ProcessedAt:           time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSeconds: math.Round(time.Since(start).Seconds()*1000) / 1000,
		ExtractedInvoice:      *invoice,
		RawTextLength:         len(extraction.Text),
		LLMModelUsed:          p.cfg.OpenAIModel,
		MatchedSupplier:       matchedSupplier,
		MatchedPO:             matchedPO,
		Discrepancies:         discrepancies,
	}
	result.ComputeSummary()

	mtime := fileMTime(pdfPath)
	status, err := p.db.Upsert(ctx, stem, result, mtime)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to persist result: %w", op, err)
	}

	log.Info().
		Str("status", status).
		Str("extractor", extraction.ExtractorName).
		Int("line_items", len(invoice.LineItems)).
		Int("errors", result.ErrorCount).
		Int("warnings", result.WarningCount).
		Dur("elapsed", time.Since(start)).
		Msg("Invoice processed")
	return result, nil
}

// ProcessBatch processes every PDF in dir once, skipping files already
// processed with an unchanged mtime. Individual failures are recorded
// and do not stop the batch.
func (p *Processor) ProcessBatch(ctx context.Context, dir string) ([]*models.ProcessingResult, error) {
	const op = "ProcessBatch"

	pdfs, err := listPDFs(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(pdfs) == 0 {
		p.log.Warn().Str("dir", dir).Msg("No PDF files found")
		return nil, nil
	}

	p.refdata.ReloadIfChanged()
	p.log.Info().Int("count", len(pdfs)).Str("dir", dir).Msg("Batch processing invoices")

	var results []*models.ProcessingResult
	for i, pdf := range pdfs {
		stem := stemOf(pdf)
		processed, err := p.db.IsProcessed(ctx, stem, fileMTime(pdf))
		if err != nil {
			return results, fmt.Errorf("%s: %w", op, err)
		}
		if processed {
			p.log.Info().
				Str("file", filepath.Base(pdf)).
				Msgf("[%d/%d] Skipping, already processed", i+1, len(pdfs))
			continue
		}

		p.log.Info().Msgf("[%d/%d] %s", i+1, len(pdfs), filepath.Base(pdf))
		result, err := p.Process(ctx, pdf)
		if err != nil {
			p.log.Error().Err(err).Str("file", filepath.Base(pdf)).Msg("Processing failed")
			if dbErr := p.db.RecordFailure(ctx, stem, pdf, fileMTime(pdf), err); dbErr != nil {
				p.log.Error().Err(dbErr).Msg("Could not record failure")
			}
			continue
		}
		results = append(results, result)
	}

	p.log.Info().
		Int("processed", len(results)).
		Int("skipped", len(pdfs)-len(results)).
		Msg("Batch complete")
	return results, nil
}

// fillComputedTotals derives a line total from quantity and unit price
// when the invoice did not state one, marking the line so reviewers can
// see the value was computed. Discount is a multiplier (0.10 = 10% off).
func fillComputedTotals(inv *models.ExtractedInvoice) {
	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		if item.Total != nil || item.Quantity == nil || item.UnitPrice == nil {
			continue
		}
		computed := round2(*item.Quantity * *item.UnitPrice)
		if item.Discount != nil && *item.Discount != 0 {
			computed = round2(computed * (1 - *item.Discount))
		}
		item.Total = &computed
		item.TotalComputed = true
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fileMTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var pdfs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			pdfs = append(pdfs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(pdfs)
	return pdfs, nil
}
